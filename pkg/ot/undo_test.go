package ot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// applyOrFail keeps the undo tests readable.
func applyOrFail(t *testing.T, op *TextOperation, doc string) string {
	t.Helper()
	got, err := op.Apply(doc)
	require.NoError(t, err)
	return got
}

func TestUndoManagerComposesTop(t *testing.T) {
	um := NewUndoManager(0)
	doc0 := "hello"

	e1 := New().Retain(5).Insert(" world")
	doc1 := applyOrFail(t, e1, doc0)
	um.Add(e1.Invert(doc0), true)

	e2 := New().Retain(11).Insert("!")
	doc2 := applyOrFail(t, e2, doc1)
	um.Add(e2.Invert(doc1), true)

	// One composed entry undoes both edits.
	require.Len(t, um.undoStack, 1)
	require.Equal(t, doc0, applyOrFail(t, um.undoStack[0], doc2))
}

func TestUndoManagerDontComposeBlocksOnce(t *testing.T) {
	um := NewUndoManager(0)
	doc := "ab"

	e1 := New().Retain(2).Insert("c")
	doc = applyOrFail(t, e1, "ab")
	um.Add(e1.Invert("ab"), true)

	// Undo puts the manager into undoing mode; the Add from the undo
	// callback lands on the redo stack and arms dontCompose.
	require.NoError(t, um.PerformUndo(func(op *TextOperation) {
		prev := doc
		doc = applyOrFail(t, op, doc)
		um.Add(op.Invert(prev), false)
	}))
	require.Equal(t, "ab", doc)
	require.True(t, um.CanRedo())

	// The next edit must start a fresh undo entry even with compose set...
	e2 := New().Retain(2).Insert("x")
	prev := doc
	doc = applyOrFail(t, e2, doc)
	um.Add(e2.Invert(prev), true)
	require.Len(t, um.undoStack, 1)
	require.False(t, um.CanRedo(), "a fresh edit clears the redo stack")

	// ...and composition resumes on the edit after that.
	e3 := New().Retain(3).Insert("y")
	prev = doc
	doc = applyOrFail(t, e3, doc)
	um.Add(e3.Invert(prev), true)
	require.Len(t, um.undoStack, 1)
	require.Equal(t, "ab", applyOrFail(t, um.undoStack[0], doc))
}

func TestUndoManagerMaxItems(t *testing.T) {
	um := NewUndoManager(2)
	doc := ""
	for i := 0; i < 4; i++ {
		op := New().Retain(len(doc)).Insert("x")
		prev := doc
		doc = applyOrFail(t, op, doc)
		um.Add(op.Invert(prev), false)
	}
	require.Len(t, um.undoStack, 2)

	// The two surviving entries undo the two newest edits only.
	require.NoError(t, um.PerformUndo(func(op *TextOperation) {
		doc = applyOrFail(t, op, doc)
	}))
	require.NoError(t, um.PerformUndo(func(op *TextOperation) {
		doc = applyOrFail(t, op, doc)
	}))
	require.Equal(t, "xx", doc)
	require.ErrorIs(t, um.PerformUndo(func(*TextOperation) {}), ErrUndoEmpty)
}

func TestUndoManagerEmptyErrors(t *testing.T) {
	um := NewUndoManager(0)
	require.ErrorIs(t, um.PerformUndo(func(*TextOperation) {}), ErrUndoEmpty)
	require.ErrorIs(t, um.PerformRedo(func(*TextOperation) {}), ErrRedoEmpty)
	require.False(t, um.CanUndo())
	require.False(t, um.CanRedo())
}

func TestUndoManagerModeQueries(t *testing.T) {
	um := NewUndoManager(0)
	um.Add(New().Delete(1), false)

	require.False(t, um.IsUndoing())
	require.NoError(t, um.PerformUndo(func(op *TextOperation) {
		require.True(t, um.IsUndoing())
		um.Add(New().Insert("x"), false)
	}))
	require.False(t, um.IsUndoing())

	require.NoError(t, um.PerformRedo(func(op *TextOperation) {
		require.True(t, um.IsRedoing())
		um.Add(New().Delete(1), false)
	}))
	require.False(t, um.IsRedoing())
	require.True(t, um.CanUndo())
}

func TestUndoManagerTransformUnderRemoteEdit(t *testing.T) {
	um := NewUndoManager(0)
	doc0 := "hello"

	e1 := New().Retain(5).Insert(" world")
	doc1 := applyOrFail(t, e1, doc0)
	um.Add(e1.Invert(doc0), true)

	e2 := New().Retain(11).Insert("!")
	doc2 := applyOrFail(t, e2, doc1)
	um.Add(e2.Invert(doc1), true)

	// A remote operation rewrites the document under the stack.
	remote := New().Insert("X").Retain(12)
	doc3 := applyOrFail(t, remote, doc2)
	um.Transform(remote)

	var afterUndo string
	require.NoError(t, um.PerformUndo(func(op *TextOperation) {
		afterUndo = applyOrFail(t, op, doc3)
		um.Add(op.Invert(doc3), false)
	}))
	require.Equal(t, "Xhello", afterUndo, "undo must revert local edits but keep the remote one")

	var afterRedo string
	require.NoError(t, um.PerformRedo(func(op *TextOperation) {
		afterRedo = applyOrFail(t, op, afterUndo)
		um.Add(op.Invert(afterUndo), false)
	}))
	require.Equal(t, doc3, afterRedo)
}

func TestUndoManagerTransformDropsCancelledEntries(t *testing.T) {
	um := NewUndoManager(0)

	// The stored inverse re-deletes a character at position 2.
	um.Add(New().Retain(2).Delete(1).Retain(1), false)

	// A remote edit deletes that same character first.
	um.Transform(New().Retain(2).Delete(1).Retain(1))
	require.False(t, um.CanUndo(), "fully cancelled inverse must be dropped")
}
