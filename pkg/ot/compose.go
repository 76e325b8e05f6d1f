package ot

import "fmt"

type componentKind int

const (
	kindNone componentKind = iota
	kindRetain
	kindInsert
	kindDelete
)

// opReader walks a component sequence and allows consuming a component in
// chunks, which keeps Compose and Transform free of index bookkeeping.
type opReader struct {
	ops    []Component
	index  int
	offset int
}

func (r *opReader) hasNext() bool {
	return r.index < len(r.ops)
}

func (r *opReader) peekKind() componentKind {
	if !r.hasNext() {
		return kindNone
	}
	c := r.ops[r.index]
	switch {
	case c.IsInsert():
		return kindInsert
	case c.IsDelete():
		return kindDelete
	default:
		return kindRetain
	}
}

func (r *opReader) peekLen() int {
	if !r.hasNext() {
		return 0
	}
	c := r.ops[r.index]
	switch {
	case c.IsRetain():
		return c.Retain - r.offset
	case c.IsInsert():
		return len(c.Insert) - r.offset
	default:
		return c.Delete - r.offset
	}
}

// take consumes n units from the current component. n < 0 consumes the
// whole remainder.
func (r *opReader) take(n int) Component {
	c := r.ops[r.index]
	remaining := r.peekLen()
	if n < 0 || n >= remaining {
		n = remaining
	}
	var out Component
	switch {
	case c.IsRetain():
		out = Component{Retain: n}
	case c.IsInsert():
		out = Component{Insert: c.Insert[r.offset : r.offset+n]}
	default:
		out = Component{Delete: n}
	}
	if n == remaining {
		r.index++
		r.offset = 0
	} else {
		r.offset += n
	}
	return out
}

// Compose merges two consecutive operations into one: for every document d
// of the right length, applying the composition equals applying t and then
// other. Requires t.TargetLen == other.BaseLen.
func (t *TextOperation) Compose(other *TextOperation) (*TextOperation, error) {
	if t.TargetLen != other.BaseLen {
		return nil, fmt.Errorf("%w: target length %d of first operation, base length %d of second",
			ErrLengthMismatch, t.TargetLen, other.BaseLen)
	}
	out := New()
	ra := &opReader{ops: t.Ops}
	rb := &opReader{ops: other.Ops}
	for ra.hasNext() || rb.hasNext() {
		if ra.peekKind() == kindDelete {
			out.Delete(ra.take(-1).Delete)
			continue
		}
		if rb.peekKind() == kindInsert {
			out.Insert(rb.take(-1).Insert)
			continue
		}
		if !ra.hasNext() || !rb.hasNext() {
			return nil, fmt.Errorf("%w: composed operations are misaligned", ErrMalformedOperation)
		}
		n := min(ra.peekLen(), rb.peekLen())
		ca, cb := ra.take(n), rb.take(n)
		switch {
		case ca.IsRetain() && cb.IsRetain():
			out.Retain(n)
		case ca.IsRetain() && cb.IsDelete():
			out.Delete(n)
		case ca.IsInsert() && cb.IsRetain():
			out.Insert(ca.Insert)
		case ca.IsInsert() && cb.IsDelete():
			// The insert is deleted again; both cancel.
		}
	}
	return out, nil
}
