package editor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"collab-sync/pkg/ot"
)

// Client is one websocket connection participating in a document session.
type Client struct {
	// Unique identifier, shown to other participants
	id string

	// The hub that routes broadcasts
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound payloads
	send chan []byte

	// Document this client is editing
	documentID string

	service *Service
	log     zerolog.Logger
}

// readPump pumps messages from the websocket connection into the service.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	cfg := c.service.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read")
			}
			break
		}
		if !c.processMessage(data) {
			break
		}
	}
}

// writePump pumps payloads from the hub to the websocket connection.
func (c *Client) writePump() {
	cfg := c.service.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage handles one inbound message. It returns false when the
// session must end: protocol errors are not recoverable.
func (c *Client) processMessage(data []byte) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn().Err(err).Msg("unmarshal message")
		c.sendError("invalid message")
		return false
	}

	switch msg.Type {
	case TypeOp:
		return c.handleOperation(msg)

	case TypeSelection:
		c.handleSelection(msg)
		return true

	default:
		c.log.Warn().Str("type", msg.Type).Msg("unknown message type")
		c.sendError("unknown message type: " + msg.Type)
		return true
	}
}

// handleOperation feeds an operation through the session server, acks the
// sender and broadcasts the transformed result to everyone else.
func (c *Client) handleOperation(msg Message) bool {
	if msg.Operation == nil {
		c.sendError("op message without operation")
		return false
	}

	accepted, err := c.service.ReceiveOperation(
		context.Background(), c.documentID, c.id, msg.Revision, msg.Operation, msg.Selection)
	if err != nil {
		// Revision and length errors mean this client's view has diverged;
		// terminate the session so it reconnects from a fresh snapshot.
		c.log.Error().Err(err).Uint64("revision", msg.Revision).Msg("operation rejected")
		c.sendError(err.Error())
		return !errors.Is(err, ot.ErrRevisionOutOfRange) && !errors.Is(err, ot.ErrLengthMismatch)
	}

	c.reply(Message{Type: TypeAck})
	c.broadcast(Message{
		Type:       TypeOp,
		DocumentID: c.documentID,
		ClientID:   c.id,
		Operation:  accepted,
		Selection:  msg.Selection,
	})
	return true
}

// handleSelection records and rebroadcasts a cursor update.
func (c *Client) handleSelection(msg Message) {
	if msg.Selection == nil {
		return
	}
	c.service.ReceiveSelection(context.Background(), c.documentID, c.id, *msg.Selection)
	c.broadcast(Message{
		Type:       TypeSelection,
		DocumentID: c.documentID,
		ClientID:   c.id,
		Selection:  msg.Selection,
	})
}

// sendDocumentState delivers the current document, revision and the other
// participants' selections to a newly joined client.
func (c *Client) sendDocumentState(session *Session) {
	session.mu.Lock()
	document := session.server.Document()
	revision := session.server.Revision()
	session.mu.Unlock()

	c.reply(Message{
		Type:       TypeDoc,
		DocumentID: c.documentID,
		ClientID:   c.id,
		Document:   document,
		Revision:   revision,
		Clients:    session.selections.All(c.id),
	})
}

// reply queues a message for this client only.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal reply")
		return
	}
	select {
	case c.send <- data:
	default:
		// Client not keeping up; the hub will drop it on next broadcast.
	}
}

// broadcast queues a message for every other client of the document.
func (c *Client) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal broadcast")
		return
	}
	c.hub.broadcast <- outbound{documentID: c.documentID, exclude: c.id, data: data}
}

func (c *Client) sendError(text string) {
	c.reply(Message{Type: TypeError, Error: text})
}
