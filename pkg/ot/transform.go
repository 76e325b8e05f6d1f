package ot

import "fmt"

// Transform rewrites two concurrent operations a and b (both based on the
// same document) into a pair (a', b') such that applying a then b' yields
// the same document as applying b then a':
//
//	Compose(a, b') == Compose(b, a')
//
// When both operations insert at the same position, a's insert comes first.
// Every caller in the system keeps this orientation: the server transforms
// with the incoming operation as first argument, the client with its
// outstanding operation as first argument.
func Transform(a, b *TextOperation) (*TextOperation, *TextOperation, error) {
	if a.BaseLen != b.BaseLen {
		return nil, nil, fmt.Errorf("%w: base lengths differ, a=%d b=%d",
			ErrLengthMismatch, a.BaseLen, b.BaseLen)
	}
	ap, bp := New(), New()
	ra := &opReader{ops: a.Ops}
	rb := &opReader{ops: b.Ops}
	for ra.hasNext() || rb.hasNext() {
		// Inserts go first; a wins the tie.
		if ra.peekKind() == kindInsert {
			s := ra.take(-1).Insert
			ap.Insert(s)
			bp.Retain(len(s))
			continue
		}
		if rb.peekKind() == kindInsert {
			s := rb.take(-1).Insert
			ap.Retain(len(s))
			bp.Insert(s)
			continue
		}
		if !ra.hasNext() || !rb.hasNext() {
			return nil, nil, fmt.Errorf("%w: transformed operations are misaligned", ErrMalformedOperation)
		}
		// Both sides consume base characters; advance by the shorter chunk.
		n := min(ra.peekLen(), rb.peekLen())
		ca, cb := ra.take(n), rb.take(n)
		switch {
		case ca.IsRetain() && cb.IsRetain():
			ap.Retain(n)
			bp.Retain(n)
		case ca.IsDelete() && cb.IsDelete():
			// Both deleted the same characters; neither needs to redo it.
		case ca.IsDelete() && cb.IsRetain():
			ap.Delete(n)
		case ca.IsRetain() && cb.IsDelete():
			bp.Delete(n)
		}
	}
	return ap, bp, nil
}
