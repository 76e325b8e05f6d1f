// Package ot implements Operational Transformation for real-time
// collaborative editing: the text operation algebra, the client protocol
// state machine, the server-side linearizer, selection transformation and
// undo history. All lengths and positions count UTF-8 bytes.
package ot

import (
	"fmt"
	"strings"
)

// Component is one atomic part of a TextOperation. Exactly one of the three
// fields is set: Retain > 0 skips characters, Insert adds text, Delete > 0
// removes characters.
type Component struct {
	Retain int
	Insert string
	Delete int
}

// IsRetain reports whether the component skips input characters.
func (c Component) IsRetain() bool { return c.Retain > 0 }

// IsInsert reports whether the component inserts text.
func (c Component) IsInsert() bool { return c.Insert != "" }

// IsDelete reports whether the component removes input characters.
func (c Component) IsDelete() bool { return c.Delete > 0 }

// TextOperation is an ordered sequence of components describing an edit of
// a linear document. Operations are built with the Retain/Insert/Delete
// appenders, which keep the sequence canonical: adjacent components of the
// same kind are merged, and an insert always precedes a delete at a
// coincident boundary. Both orders apply to the same document. With
// insert-first, a cursor inside a deleted run that is also the site of an
// insert lands after the insert, as it would when the delete and the insert
// are transformed one after the other; a cursor at the start of such a run
// is pushed after the insert as well.
type TextOperation struct {
	Ops []Component

	// BaseLen is the length of any document this operation applies to.
	BaseLen int
	// TargetLen is the length of the document after applying it.
	TargetLen int
}

// New returns an empty operation.
func New() *TextOperation {
	return &TextOperation{}
}

// Retain appends a retain component, merging with a trailing retain.
// Retaining zero characters is a no-op.
func (t *TextOperation) Retain(n int) *TextOperation {
	if n == 0 {
		return t
	}
	if n < 0 {
		panic("ot: retain count must be positive")
	}
	t.BaseLen += n
	t.TargetLen += n
	if i := len(t.Ops); i > 0 && t.Ops[i-1].IsRetain() {
		t.Ops[i-1].Retain += n
	} else {
		t.Ops = append(t.Ops, Component{Retain: n})
	}
	return t
}

// Insert appends an insert component, merging with a trailing insert.
// Inserting the empty string is a no-op. When the previous component is a
// delete, the insert is placed before it to keep the canonical order.
func (t *TextOperation) Insert(s string) *TextOperation {
	if s == "" {
		return t
	}
	t.TargetLen += len(s)
	i := len(t.Ops)
	switch {
	case i > 0 && t.Ops[i-1].IsInsert():
		t.Ops[i-1].Insert += s
	case i > 0 && t.Ops[i-1].IsDelete():
		if i > 1 && t.Ops[i-2].IsInsert() {
			t.Ops[i-2].Insert += s
		} else {
			del := t.Ops[i-1]
			t.Ops[i-1] = Component{Insert: s}
			t.Ops = append(t.Ops, del)
		}
	default:
		t.Ops = append(t.Ops, Component{Insert: s})
	}
	return t
}

// Delete appends a delete component, merging with a trailing delete.
// Deleting zero characters is a no-op.
func (t *TextOperation) Delete(n int) *TextOperation {
	if n == 0 {
		return t
	}
	if n < 0 {
		panic("ot: delete count must be positive")
	}
	t.BaseLen += n
	if i := len(t.Ops); i > 0 && t.Ops[i-1].IsDelete() {
		t.Ops[i-1].Delete += n
	} else {
		t.Ops = append(t.Ops, Component{Delete: n})
	}
	return t
}

// IsNoop reports whether the operation leaves every valid document
// unchanged: it is empty or a single retain.
func (t *TextOperation) IsNoop() bool {
	return len(t.Ops) == 0 || (len(t.Ops) == 1 && t.Ops[0].IsRetain())
}

// Equals reports whether two operations have identical canonical forms.
func (t *TextOperation) Equals(other *TextOperation) bool {
	if t.BaseLen != other.BaseLen || t.TargetLen != other.TargetLen || len(t.Ops) != len(other.Ops) {
		return false
	}
	for i, c := range t.Ops {
		if c != other.Ops[i] {
			return false
		}
	}
	return true
}

// Apply runs the operation against doc and returns the resulting document.
// The document must have exactly BaseLen characters.
func (t *TextOperation) Apply(doc string) (string, error) {
	if len(doc) != t.BaseLen {
		return "", fmt.Errorf("%w: document length %d, operation base length %d",
			ErrLengthMismatch, len(doc), t.BaseLen)
	}
	var b strings.Builder
	b.Grow(t.TargetLen)
	pos := 0
	for _, c := range t.Ops {
		switch {
		case c.IsRetain():
			b.WriteString(doc[pos : pos+c.Retain])
			pos += c.Retain
		case c.IsInsert():
			b.WriteString(c.Insert)
		default:
			pos += c.Delete
		}
	}
	return b.String(), nil
}

// Invert computes the inverse operation relative to doc, the document the
// operation applies to: applying the operation and then its inverse yields
// doc again. Deleted text is recovered from doc.
func (t *TextOperation) Invert(doc string) *TextOperation {
	inv := New()
	pos := 0
	for _, c := range t.Ops {
		switch {
		case c.IsRetain():
			inv.Retain(c.Retain)
			pos += c.Retain
		case c.IsInsert():
			inv.Delete(len(c.Insert))
		default:
			inv.Insert(doc[pos : pos+c.Delete])
			pos += c.Delete
		}
	}
	return inv
}

// String renders the operation in a compact human-readable form.
func (t *TextOperation) String() string {
	parts := make([]string, len(t.Ops))
	for i, c := range t.Ops {
		switch {
		case c.IsRetain():
			parts[i] = fmt.Sprintf("retain %d", c.Retain)
		case c.IsInsert():
			parts[i] = fmt.Sprintf("insert %q", c.Insert)
		default:
			parts[i] = fmt.Sprintf("delete %d", c.Delete)
		}
	}
	return strings.Join(parts, ", ")
}
