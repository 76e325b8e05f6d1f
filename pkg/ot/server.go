package ot

import "fmt"

// Server owns the authoritative document and the linearized history of
// every accepted operation. It has no notion of connections: the session
// layer feeds it operations and broadcasts what it returns. Callers must
// serialize access if the transport delivers in parallel.
type Server struct {
	document   string
	operations []*TextOperation
}

// NewServer returns a server seeded with an initial document.
func NewServer(document string) *Server {
	return &Server{document: document}
}

// Document returns the current authoritative document.
func (s *Server) Document() string { return s.document }

// Revision returns the number of operations accepted so far.
func (s *Server) Revision() uint64 { return uint64(len(s.operations)) }

// ReceiveOperation accepts an operation a client created against the
// document at the given revision. The operation is transformed past every
// operation the client had not yet seen, applied, appended to the history
// and returned; the caller broadcasts the result to the other clients and
// acks the origin.
func (s *Server) ReceiveOperation(revision uint64, op *TextOperation) (*TextOperation, error) {
	if revision > uint64(len(s.operations)) {
		return nil, fmt.Errorf("%w: revision %d, history has %d operations",
			ErrRevisionOutOfRange, revision, len(s.operations))
	}
	for _, concurrent := range s.operations[revision:] {
		var err error
		if op, _, err = Transform(op, concurrent); err != nil {
			return nil, err
		}
	}
	document, err := op.Apply(s.document)
	if err != nil {
		return nil, err
	}
	s.document = document
	s.operations = append(s.operations, op)
	return op, nil
}

// OperationsSince returns the history suffix a client at the given revision
// has not seen yet. The slice aliases the history; callers must not mutate
// it.
func (s *Server) OperationsSince(revision uint64) ([]*TextOperation, error) {
	if revision > uint64(len(s.operations)) {
		return nil, fmt.Errorf("%w: revision %d, history has %d operations",
			ErrRevisionOutOfRange, revision, len(s.operations))
	}
	return s.operations[revision:], nil
}
