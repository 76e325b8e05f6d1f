package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"collab-sync/pkg/ot"
)

func TestSelectionRegistryUpdateAndAll(t *testing.T) {
	r := NewSelectionRegistry()
	r.Update("a", ot.Cursor(1))
	r.Update("b", ot.Cursor(3))

	all := r.All("a")
	require.Len(t, all, 1)
	require.Equal(t, "b", all[0].ClientID)

	// A newer selection replaces the old one wholesale.
	r.Update("b", ot.Selection{Ranges: []ot.Range{{Anchor: 0, Head: 2}}})
	all = r.All("a")
	require.True(t, all[0].Selection.Equals(ot.Selection{Ranges: []ot.Range{{Anchor: 0, Head: 2}}}))
}

func TestSelectionRegistryTransformAllSkipsAuthor(t *testing.T) {
	r := NewSelectionRegistry()
	r.Update("author", ot.Cursor(4))
	r.Update("other", ot.Cursor(4))

	r.TransformAll(ot.New().Insert("xx").Retain(4), "author")

	all := r.All("")
	for _, cs := range all {
		switch cs.ClientID {
		case "author":
			require.True(t, cs.Selection.Equals(ot.Cursor(4)))
		case "other":
			require.True(t, cs.Selection.Equals(ot.Cursor(6)))
		}
	}
}

func TestSelectionRegistryRemoveAndCleanup(t *testing.T) {
	r := NewSelectionRegistry()
	r.Update("a", ot.Cursor(0))
	r.Remove("a")
	require.Empty(t, r.All(""))

	r.Update("b", ot.Cursor(0))
	r.CleanupStale(time.Nanosecond)
	time.Sleep(time.Millisecond)
	r.CleanupStale(time.Nanosecond)
	require.Empty(t, r.All(""))
}
