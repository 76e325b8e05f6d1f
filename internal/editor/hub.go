package editor

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// outbound is a routed broadcast: a payload for every client of a document
// except, optionally, one.
type outbound struct {
	documentID string
	exclude    string
	data       []byte
}

// Hub maintains active client connections and fans accepted messages out to
// the other participants of each document.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Per-document client tracking
	documentClients map[string]map[*Client]bool

	// Outbound messages to a document's clients
	broadcast chan outbound

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Stats requests, answered by the run loop that owns the maps
	statsReq chan chan map[string]any

	service *Service
	log     zerolog.Logger
}

// NewHub creates a hub bound to a service.
func NewHub(service *Service, log zerolog.Logger) *Hub {
	return &Hub{
		clients:         make(map[*Client]bool),
		documentClients: make(map[string]map[*Client]bool),
		broadcast:       make(chan outbound, 256),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		statsReq:        make(chan chan map[string]any),
		service:         service,
		log:             log,
	}
}

// run is the hub's main loop; all membership state is owned by this
// goroutine.
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case msg := <-h.broadcast:
			h.broadcastToDocument(msg.documentID, msg.data, msg.exclude)

		case reply := <-h.statsReq:
			reply <- h.stats()
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = true

	if h.documentClients[client.documentID] == nil {
		h.documentClients[client.documentID] = make(map[*Client]bool)
	}
	h.documentClients[client.documentID][client] = true

	h.log.Info().
		Str("client", client.id).
		Str("document", client.documentID).
		Int("documentClients", len(h.documentClients[client.documentID])).
		Msg("client registered")

	h.announce(Message{
		Type:       TypeJoin,
		DocumentID: client.documentID,
		ClientID:   client.id,
	}, client.id)
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if docClients := h.documentClients[client.documentID]; docClients != nil {
		delete(docClients, client)
		if len(docClients) == 0 {
			delete(h.documentClients, client.documentID)
		}
	}

	h.service.clientLeft(client)

	h.log.Info().
		Str("client", client.id).
		Str("document", client.documentID).
		Int("totalClients", len(h.clients)).
		Msg("client unregistered")

	h.announce(Message{
		Type:       TypeLeave,
		DocumentID: client.documentID,
		ClientID:   client.id,
	}, client.id)
}

// announce marshals and broadcasts a presence message.
func (h *Hub) announce(msg Message, excludeClientID string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal presence message")
		return
	}
	h.broadcastToDocument(msg.DocumentID, data, excludeClientID)
}

// broadcastToDocument sends a payload to every client of a document. A
// client whose send buffer is full is dropped rather than allowed to stall
// the rest of the session.
func (h *Hub) broadcastToDocument(docID string, data []byte, excludeClientID string) {
	for client := range h.documentClients[docID] {
		if client.id == excludeClientID {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.log.Warn().Str("client", client.id).Msg("send buffer full, dropping client")
			close(client.send)
			delete(h.clients, client)
			delete(h.documentClients[docID], client)
		}
	}
}

// shutdown closes every client connection.
func (h *Hub) shutdown() {
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.log.Info().Msg("hub shut down")
}

// Stats summarizes hub membership for the stats endpoint. The request is
// answered by the run loop, so it is safe from any goroutine.
func (h *Hub) Stats() map[string]any {
	reply := make(chan map[string]any, 1)
	h.statsReq <- reply
	return <-reply
}

func (h *Hub) stats() map[string]any {
	perDocument := make(map[string]int, len(h.documentClients))
	for docID, clients := range h.documentClients {
		perDocument[docID] = len(clients)
	}
	return map[string]any{
		"total_clients":   len(h.clients),
		"total_documents": len(h.documentClients),
		"documents":       perDocument,
	}
}
