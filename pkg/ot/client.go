package ot

// Editor is the embedder of a Client: typically an editor binding plus a
// network layer. The Client calls these during state transitions; they must
// not call back into the Client synchronously. An embedder that needs to
// react must queue the event and process it after the transition returns.
type Editor interface {
	// SendOperation transmits an operation parented at the given revision
	// to the server. Fire-and-forget: the Client never waits on it.
	SendOperation(revision uint64, op *TextOperation)

	// ApplyOperation applies a remote operation to the local document view.
	ApplyOperation(op *TextOperation)
}

// Client coordinates local edits with an authoritative server. At most one
// operation is in flight at a time; edits made while waiting are composed
// into a single buffer so a reconnect still resends exactly one operation.
//
// The Client is single-threaded: the embedder serializes ApplyClient,
// ApplyServer, ServerAck and ServerReconnect, and must deliver server
// events in server order.
type Client struct {
	revision uint64
	state    clientState
	editor   Editor
}

// NewClient returns a client in the Synchronized state. revision is the
// number of server operations the local document already reflects.
func NewClient(revision uint64, editor Editor) *Client {
	return &Client{revision: revision, state: synchronizedState, editor: editor}
}

// Revision returns the number of acknowledged server operations observed.
func (c *Client) Revision() uint64 { return c.revision }

// ApplyClient records an edit the user made to the local document. It is
// either sent immediately or buffered behind the in-flight operation.
func (c *Client) ApplyClient(op *TextOperation) error {
	state, err := c.state.applyClient(c, op)
	if err != nil {
		return err
	}
	c.state = state
	return nil
}

// ApplyServer processes another client's operation received from the
// server, transforming it past anything still in flight before handing it
// to the editor.
func (c *Client) ApplyServer(op *TextOperation) error {
	state, err := c.state.applyServer(c, op)
	if err != nil {
		return err
	}
	c.revision++
	c.state = state
	return nil
}

// ServerAck processes the server's acknowledgement of the in-flight
// operation. A buffered operation, if any, is sent next. The ack is the
// observation of the client's own operation in the history, so the revision
// moves before the buffer goes out: the buffer is parented after it.
func (c *Client) ServerAck() error {
	c.revision++
	state, err := c.state.serverAck(c)
	if err != nil {
		c.revision--
		return err
	}
	c.state = state
	return nil
}

// ServerReconnect resends the in-flight operation after a reconnect. The
// server is expected to deduplicate resends by client and revision.
func (c *Client) ServerReconnect() {
	c.state.resend(c)
}

// TransformSelection maps a selection taken against the last known server
// document through everything not yet acknowledged.
func (c *Client) TransformSelection(sel Selection) Selection {
	return c.state.transformSelection(sel)
}

// clientState is the closed set of protocol states. Transitions return the
// successor state; revision bookkeeping lives in Client.
type clientState interface {
	applyClient(c *Client, op *TextOperation) (clientState, error)
	applyServer(c *Client, op *TextOperation) (clientState, error)
	serverAck(c *Client) (clientState, error)
	resend(c *Client)
	transformSelection(sel Selection) Selection
}

// synchronized is the resting state: no local edit is waiting for the
// server. It carries no data, so a single value serves every client.
type synchronized struct{}

var synchronizedState clientState = synchronized{}

func (synchronized) applyClient(c *Client, op *TextOperation) (clientState, error) {
	c.editor.SendOperation(c.revision, op)
	return awaitingConfirm{outstanding: op}, nil
}

func (synchronized) applyServer(c *Client, op *TextOperation) (clientState, error) {
	c.editor.ApplyOperation(op)
	return synchronizedState, nil
}

func (synchronized) serverAck(*Client) (clientState, error) {
	return nil, ErrNoPendingOperation
}

func (synchronized) resend(*Client) {}

func (synchronized) transformSelection(sel Selection) Selection { return sel }

// awaitingConfirm holds the single operation sent to the server and not yet
// acknowledged.
type awaitingConfirm struct {
	outstanding *TextOperation
}

func (s awaitingConfirm) applyClient(c *Client, op *TextOperation) (clientState, error) {
	return awaitingWithBuffer{outstanding: s.outstanding, buffer: op}, nil
}

func (s awaitingConfirm) applyServer(c *Client, op *TextOperation) (clientState, error) {
	// The incoming operation and the outstanding one are concurrent:
	// rebase both so the document and the in-flight edit stay aligned.
	outstanding, transformed, err := Transform(s.outstanding, op)
	if err != nil {
		return nil, err
	}
	c.editor.ApplyOperation(transformed)
	return awaitingConfirm{outstanding: outstanding}, nil
}

func (s awaitingConfirm) serverAck(*Client) (clientState, error) {
	return synchronizedState, nil
}

func (s awaitingConfirm) resend(c *Client) {
	c.editor.SendOperation(c.revision, s.outstanding)
}

func (s awaitingConfirm) transformSelection(sel Selection) Selection {
	return sel.Transform(s.outstanding)
}

// awaitingWithBuffer additionally accumulates local edits made while the
// outstanding operation is in flight. The buffer is composed, not queued.
type awaitingWithBuffer struct {
	outstanding *TextOperation
	buffer      *TextOperation
}

func (s awaitingWithBuffer) applyClient(c *Client, op *TextOperation) (clientState, error) {
	buffer, err := s.buffer.Compose(op)
	if err != nil {
		return nil, err
	}
	return awaitingWithBuffer{outstanding: s.outstanding, buffer: buffer}, nil
}

func (s awaitingWithBuffer) applyServer(c *Client, op *TextOperation) (clientState, error) {
	outstanding, transformed, err := Transform(s.outstanding, op)
	if err != nil {
		return nil, err
	}
	buffer, transformed, err := Transform(s.buffer, transformed)
	if err != nil {
		return nil, err
	}
	c.editor.ApplyOperation(transformed)
	return awaitingWithBuffer{outstanding: outstanding, buffer: buffer}, nil
}

func (s awaitingWithBuffer) serverAck(c *Client) (clientState, error) {
	c.editor.SendOperation(c.revision, s.buffer)
	return awaitingConfirm{outstanding: s.buffer}, nil
}

func (s awaitingWithBuffer) resend(c *Client) {
	c.editor.SendOperation(c.revision, s.outstanding)
}

func (s awaitingWithBuffer) transformSelection(sel Selection) Selection {
	return sel.Transform(s.outstanding).Transform(s.buffer)
}
