package ot

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeTransformInsertBeforeAndAfter(t *testing.T) {
	r := Range{Anchor: 3, Head: 5}

	// Insert before the range shifts it right.
	shifted := r.Transform(New().Insert("xx").Retain(6))
	require.Equal(t, Range{Anchor: 5, Head: 7}, shifted)

	// Insert after the range leaves it alone.
	same := r.Transform(New().Retain(6).Insert("xx"))
	require.Equal(t, r, same)
}

func TestRangeTransformInsertAtCursorPushesRight(t *testing.T) {
	cursor := Range{Anchor: 2, Head: 2}
	moved := cursor.Transform(New().Retain(2).Insert("ab").Retain(3))
	require.Equal(t, Range{Anchor: 4, Head: 4}, moved)
}

func TestRangeTransformDeleteClampsToRunStart(t *testing.T) {
	// Cursor inside the deleted run collapses to the run's start.
	cursor := Range{Anchor: 4, Head: 4}
	moved := cursor.Transform(New().Retain(2).Delete(5).Retain(3))
	require.Equal(t, Range{Anchor: 2, Head: 2}, moved)

	// Cursor after the run shifts left by the deleted length.
	later := Range{Anchor: 9, Head: 9}
	moved = later.Transform(New().Retain(2).Delete(5).Retain(3))
	require.Equal(t, Range{Anchor: 4, Head: 4}, moved)
}

func TestSelectionTransformHomomorphism(t *testing.T) {
	// Transforming through a composition equals transforming step by step.
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		doc := randomString(rng, 5+rng.Intn(30))
		a := randomOperation(rng, doc)
		mid, err := a.Apply(doc)
		require.NoError(t, err)
		b := randomOperation(rng, mid)
		composed, err := a.Compose(b)
		require.NoError(t, err)

		sel := Selection{Ranges: []Range{
			{Anchor: rng.Intn(len(doc) + 1), Head: rng.Intn(len(doc) + 1)},
			{Anchor: rng.Intn(len(doc) + 1), Head: rng.Intn(len(doc) + 1)},
		}}
		stepped := sel.Transform(a).Transform(b)
		direct := sel.Transform(composed)
		require.True(t, direct.Equals(stepped),
			"selection transform not compositional:\n  sel=%+v\n  a=%v\n  b=%v", sel, a, b)
	}
}

func TestSelectionComposeLaterWins(t *testing.T) {
	first := Cursor(1)
	second := Selection{Ranges: []Range{{Anchor: 2, Head: 6}}}
	require.Equal(t, second, first.Compose(second))
}

func TestSelectionEqualsIgnoresOrder(t *testing.T) {
	a := Selection{Ranges: []Range{{Anchor: 1, Head: 2}, {Anchor: 4, Head: 4}}}
	b := Selection{Ranges: []Range{{Anchor: 4, Head: 4}, {Anchor: 1, Head: 2}}}
	require.True(t, a.Equals(b))
	require.False(t, a.Equals(Cursor(1)))
}

func TestSelectionSomethingSelected(t *testing.T) {
	require.False(t, Cursor(3).SomethingSelected())
	require.True(t, Selection{Ranges: []Range{{Anchor: 0, Head: 0}, {Anchor: 1, Head: 3}}}.SomethingSelected())
}

func TestSelectionJSON(t *testing.T) {
	sel := Selection{Ranges: []Range{{Anchor: 1, Head: 4}}}
	data, err := json.Marshal(sel)
	require.NoError(t, err)
	require.JSONEq(t, `{"ranges":[{"anchor":1,"head":4}]}`, string(data))

	var decoded Selection
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, sel.Equals(decoded))

	// A bare range array is accepted for backward compatibility.
	var legacy Selection
	require.NoError(t, json.Unmarshal([]byte(`[{"anchor":1,"head":4}]`), &legacy))
	require.True(t, sel.Equals(legacy))
}
