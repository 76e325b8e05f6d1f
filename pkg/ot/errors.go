package ot

import "errors"

// Errors reported by the ot package. All of them are sentinel values so
// callers can test with errors.Is after unwrapping.
var (
	// ErrLengthMismatch is returned when an operation is applied, composed
	// or transformed against a document or operation of the wrong length.
	ErrLengthMismatch = errors.New("ot: length mismatch")

	// ErrMalformedOperation is returned when decoding an operation that
	// violates a structural invariant (zero-length component, empty insert).
	ErrMalformedOperation = errors.New("ot: malformed operation")

	// ErrRevisionOutOfRange is returned by Server.ReceiveOperation when the
	// claimed revision is newer than the history.
	ErrRevisionOutOfRange = errors.New("ot: revision out of range")

	// ErrNoPendingOperation is returned when a server ack arrives while the
	// client has nothing in flight. This is a fatal protocol error.
	ErrNoPendingOperation = errors.New("ot: no pending operation")

	// ErrUndoEmpty and ErrRedoEmpty signal that the respective stack has no
	// entries. They are user-facing and non-fatal.
	ErrUndoEmpty = errors.New("ot: undo stack is empty")
	ErrRedoEmpty = errors.New("ot: redo stack is empty")
)
