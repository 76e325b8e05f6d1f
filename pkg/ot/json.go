package ot

import (
	"encoding/json"
	"fmt"
)

// The wire form of an operation is a JSON object {"ops":[...]} whose array
// holds a positive integer n for Retain(n), a negative integer -n for
// Delete(n) and a string for Insert. Parsing and re-serializing a canonical
// operation is the identity.

// MarshalJSON implements json.Marshaler.
func (t *TextOperation) MarshalJSON() ([]byte, error) {
	ops := make([]any, len(t.Ops))
	for i, c := range t.Ops {
		switch {
		case c.IsRetain():
			ops[i] = c.Retain
		case c.IsInsert():
			ops[i] = c.Insert
		default:
			ops[i] = -c.Delete
		}
	}
	return json.Marshal(struct {
		Ops []any `json:"ops"`
	}{ops})
}

// UnmarshalJSON implements json.Unmarshaler. The decoded operation is
// rebuilt through the appenders, so it comes out canonical.
func (t *TextOperation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ops []json.RawMessage `json:"ops"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOperation, err)
	}
	op := New()
	for _, m := range raw.Ops {
		var s string
		if err := json.Unmarshal(m, &s); err == nil {
			if s == "" {
				return fmt.Errorf("%w: empty insert", ErrMalformedOperation)
			}
			op.Insert(s)
			continue
		}
		var n int
		if err := json.Unmarshal(m, &n); err != nil {
			return fmt.Errorf("%w: component must be an integer or a string", ErrMalformedOperation)
		}
		switch {
		case n > 0:
			op.Retain(n)
		case n < 0:
			op.Delete(-n)
		default:
			return fmt.Errorf("%w: zero-length component", ErrMalformedOperation)
		}
	}
	*t = *op
	return nil
}

// Frame kinds sent from the server to clients.
const (
	FrameAck = "ack"
	FrameOp  = "op"
)

// ClientFrame is the client-to-server message carrying one operation.
type ClientFrame struct {
	Revision  uint64         `json:"revision"`
	Operation *TextOperation `json:"operation"`
	Selection *Selection     `json:"selection,omitempty"`
}

// ServerFrame is the server-to-client message: either an ack for the
// receiver's own operation or another client's transformed operation.
type ServerFrame struct {
	Kind      string         `json:"kind"`
	Operation *TextOperation `json:"operation,omitempty"`
	Selection *Selection     `json:"selection,omitempty"`
	ClientID  string         `json:"clientId,omitempty"`
}
