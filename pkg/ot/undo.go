package ot

// DefaultMaxUndoItems bounds the undo stack when NewUndoManager is given a
// non-positive limit.
const DefaultMaxUndoItems = 50

type undoMode int

const (
	modeNormal undoMode = iota
	modeUndoing
	modeRedoing
)

// UndoManager keeps inverses of local edits so that popping and applying
// the top of the undo stack reverts the most recent edit. When remote
// operations arrive concurrently, Transform rewrites both stacks so the
// stored inverses stay valid against the new document.
//
// The embedder drives it: after a local edit, Add the edit's inverse; on
// undo, the callback given to PerformUndo applies the popped inverse to the
// document and Adds its inverse in turn, which lands on the redo stack
// because the manager is in undoing mode.
type UndoManager struct {
	maxItems    int
	undoStack   []*TextOperation
	redoStack   []*TextOperation
	mode        undoMode
	dontCompose bool
}

// NewUndoManager returns a manager whose undo stack holds at most maxItems
// entries; the oldest entry is dropped on overflow.
func NewUndoManager(maxItems int) *UndoManager {
	if maxItems <= 0 {
		maxItems = DefaultMaxUndoItems
	}
	return &UndoManager{maxItems: maxItems}
}

// Add records op, the inverse of an edit that was just applied. With
// compose set, op is merged into the top entry so one undo reverts the
// whole run of recent edits; composition is suppressed for exactly one Add
// after an undo or redo.
func (u *UndoManager) Add(op *TextOperation, compose bool) {
	switch u.mode {
	case modeUndoing:
		u.redoStack = append(u.redoStack, op)
		u.dontCompose = true
	case modeRedoing:
		u.undoStack = append(u.undoStack, op)
		u.dontCompose = true
	default:
		if !u.dontCompose && compose && len(u.undoStack) > 0 {
			top := u.undoStack[len(u.undoStack)-1]
			composed, err := op.Compose(top)
			if err != nil {
				panic("ot: undo entry does not compose: " + err.Error())
			}
			u.undoStack[len(u.undoStack)-1] = composed
		} else {
			u.undoStack = append(u.undoStack, op)
			if len(u.undoStack) > u.maxItems {
				u.undoStack = u.undoStack[1:]
			}
		}
		u.dontCompose = false
		u.redoStack = u.redoStack[:0]
	}
}

// Transform rewrites both stacks as if op had been applied before every
// stored inverse. Entries that a concurrent operation cancelled out
// entirely are dropped.
func (u *UndoManager) Transform(op *TextOperation) {
	u.undoStack = transformStack(u.undoStack, op)
	u.redoStack = transformStack(u.redoStack, op)
}

// transformStack walks from the top: the top entry is based on the same
// document as op, and each transform yields the op to carry one entry
// deeper.
func transformStack(stack []*TextOperation, op *TextOperation) []*TextOperation {
	out := make([]*TextOperation, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		entry, next, err := Transform(stack[i], op)
		if err != nil {
			panic("ot: undo stack does not transform: " + err.Error())
		}
		op = next
		if !entry.IsNoop() {
			out = append(out, entry)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// PerformUndo pops the newest inverse and hands it to fn, which applies it
// to the document and records its inverse via Add. Returns ErrUndoEmpty if
// there is nothing to undo.
func (u *UndoManager) PerformUndo(fn func(*TextOperation)) error {
	if len(u.undoStack) == 0 {
		return ErrUndoEmpty
	}
	u.mode = modeUndoing
	op := u.undoStack[len(u.undoStack)-1]
	u.undoStack = u.undoStack[:len(u.undoStack)-1]
	fn(op)
	u.mode = modeNormal
	return nil
}

// PerformRedo is the mirror of PerformUndo over the redo stack.
func (u *UndoManager) PerformRedo(fn func(*TextOperation)) error {
	if len(u.redoStack) == 0 {
		return ErrRedoEmpty
	}
	u.mode = modeRedoing
	op := u.redoStack[len(u.redoStack)-1]
	u.redoStack = u.redoStack[:len(u.redoStack)-1]
	fn(op)
	u.mode = modeNormal
	return nil
}

// CanUndo reports whether the undo stack has entries.
func (u *UndoManager) CanUndo() bool { return len(u.undoStack) > 0 }

// CanRedo reports whether the redo stack has entries.
func (u *UndoManager) CanRedo() bool { return len(u.redoStack) > 0 }

// IsUndoing reports whether a PerformUndo callback is running.
func (u *UndoManager) IsUndoing() bool { return u.mode == modeUndoing }

// IsRedoing reports whether a PerformRedo callback is running.
func (u *UndoManager) IsRedoing() bool { return u.mode == modeRedoing }
