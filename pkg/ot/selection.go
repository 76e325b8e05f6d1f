package ot

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Range is a contiguous span of the document between anchor and head, both
// 0-based indices. Anchor is where the selection started, head is where the
// cursor is; an empty range (anchor == head) is a plain cursor.
type Range struct {
	Anchor int `json:"anchor"`
	Head   int `json:"head"`
}

// IsEmpty reports whether the range is a cursor.
func (r Range) IsEmpty() bool { return r.Anchor == r.Head }

// Transform maps the range through an operation so that it points at the
// same text in the resulting document. An insert exactly at a position
// pushes it right, matching the Transform tie-break; a delete spanning a
// position clamps it to the start of the deleted run.
func (r Range) Transform(op *TextOperation) Range {
	if r.IsEmpty() {
		p := transformIndex(r.Anchor, op)
		return Range{Anchor: p, Head: p}
	}
	return Range{
		Anchor: transformIndex(r.Anchor, op),
		Head:   transformIndex(r.Head, op),
	}
}

// transformIndex walks the operation tracking index, the remaining offset
// of the position into the base document, while newIndex accumulates the
// position in the target document.
func transformIndex(index int, op *TextOperation) int {
	newIndex := index
	for _, c := range op.Ops {
		switch {
		case c.IsRetain():
			index -= c.Retain
		case c.IsInsert():
			newIndex += len(c.Insert)
		default:
			newIndex -= min(index, c.Delete)
			index -= c.Delete
		}
		if index < 0 {
			break
		}
	}
	return newIndex
}

// Selection is a non-empty ordered list of ranges. The common case is a
// single cursor.
type Selection struct {
	Ranges []Range `json:"ranges"`
}

// Cursor returns a selection holding a single empty range at pos.
func Cursor(pos int) Selection {
	return Selection{Ranges: []Range{{Anchor: pos, Head: pos}}}
}

// Transform maps every range through the operation.
func (s Selection) Transform(op *TextOperation) Selection {
	ranges := make([]Range, len(s.Ranges))
	for i, r := range s.Ranges {
		ranges[i] = r.Transform(op)
	}
	return Selection{Ranges: ranges}
}

// Compose returns the later of two consecutive selections. The newer
// selection supersedes the older one entirely.
func (s Selection) Compose(other Selection) Selection {
	return other
}

// Equals reports whether both selections cover the same ranges, ignoring
// order.
func (s Selection) Equals(other Selection) bool {
	if len(s.Ranges) != len(other.Ranges) {
		return false
	}
	a := append([]Range(nil), s.Ranges...)
	b := append([]Range(nil), other.Ranges...)
	byPos := func(rs []Range) func(i, j int) bool {
		return func(i, j int) bool {
			if rs[i].Anchor != rs[j].Anchor {
				return rs[i].Anchor < rs[j].Anchor
			}
			return rs[i].Head < rs[j].Head
		}
	}
	sort.Slice(a, byPos(a))
	sort.Slice(b, byPos(b))
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SomethingSelected reports whether any range is non-empty.
func (s Selection) SomethingSelected() bool {
	for _, r := range s.Ranges {
		if !r.IsEmpty() {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts the canonical {"ranges":[...]} object and, for
// backward compatibility, a bare array of ranges.
func (s *Selection) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &s.Ranges)
	}
	var obj struct {
		Ranges []Range `json:"ranges"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Ranges = obj.Ranges
	return nil
}
