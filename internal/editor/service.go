package editor

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"collab-sync/pkg/ot"
)

// Config holds the session service tunables.
type Config struct {
	MaxMessageSize int64
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	SelectionTTL   time.Duration
}

// DefaultConfig returns the values used when no configuration is supplied.
func DefaultConfig() *Config {
	return &Config{
		MaxMessageSize: 512 * 1024,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		SelectionTTL:   5 * time.Minute,
	}
}

// SnapshotStore persists document snapshots and the operation log. The
// service works without one; every method is only called when set.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, docID string) (content string, revision uint64, err error)
	SaveSnapshot(ctx context.Context, docID string, content string, revision uint64) error
	AppendOperation(ctx context.Context, docID string, revision uint64, op *ot.TextOperation) error
}

// DocumentCache keeps hot document state close by so a restarted service
// warm-starts without hitting the store.
type DocumentCache interface {
	SetSnapshot(ctx context.Context, docID string, content string, revision uint64) error
	GetSnapshot(ctx context.Context, docID string) (content string, revision uint64, err error)
}

// PresenceTracker mirrors document membership into a shared location.
type PresenceTracker interface {
	AddMember(ctx context.Context, docID, clientID string) error
	RemoveMember(ctx context.Context, docID, clientID string) error
}

// Session is the live state of one document: the authoritative OT server
// plus the participants' selections. The mutex serializes ReceiveOperation
// as the transport delivers frames from many connections in parallel.
type Session struct {
	mu         sync.Mutex
	id         string
	server     *ot.Server
	selections *SelectionRegistry

	// baseRevision is the persisted revision the in-memory history was
	// seeded from. Clients speak session-local revisions; the store keys
	// operations by baseRevision + local revision.
	baseRevision uint64
}

// Service owns the document sessions and the websocket plumbing around
// them. It is the embedder of the OT core: it feeds operations into each
// session's server and broadcasts what comes back.
type Service struct {
	hub      *Hub
	upgrader websocket.Upgrader
	config   *Config
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	store    SnapshotStore
	cache    DocumentCache
	presence PresenceTracker

	opsAccepted atomic.Int64
	opsRejected atomic.Int64
}

// NewService creates a service with the given configuration; nil means
// defaults.
func NewService(cfg *Config, log zerolog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Service{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the frontend host is fixed
				return true
			},
		},
		config:   cfg,
		log:      log,
		sessions: make(map[string]*Session),
	}
	s.hub = NewHub(s, log)
	return s
}

// SetStore wires snapshot persistence. Call before Start.
func (s *Service) SetStore(store SnapshotStore) { s.store = store }

// SetCache wires the document cache. Call before Start.
func (s *Service) SetCache(cache DocumentCache) { s.cache = cache }

// SetPresence wires presence tracking. Call before Start.
func (s *Service) SetPresence(presence PresenceTracker) { s.presence = presence }

// Start launches the hub and the background maintenance loop.
func (s *Service) Start() {
	go s.hub.run()
	go s.cleanupLoop()
	s.log.Info().Msg("editor service started")
}

// Shutdown closes every connection and persists the open sessions.
func (s *Service) Shutdown(ctx context.Context) {
	s.hub.shutdown()

	if s.store != nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for id, session := range s.sessions {
			session.mu.Lock()
			content := session.server.Document()
			revision := session.baseRevision + session.server.Revision()
			session.mu.Unlock()
			if err := s.store.SaveSnapshot(ctx, id, content, revision); err != nil {
				s.log.Error().Err(err).Str("document", id).Msg("save snapshot on shutdown")
			}
		}
	}
	s.log.Info().Msg("editor service shut down")
}

// HandleWebSocket upgrades a connection and attaches it to a document
// session.
func (s *Service) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("doc")
	if docID == "" {
		http.Error(w, "missing document id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := s.session(r.Context(), docID)
	clientID := uuid.New().String()[:8]
	client := &Client{
		id:         clientID,
		hub:        s.hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		documentID: docID,
		service:    s,
		log:        s.log.With().Str("client", clientID).Str("document", docID).Logger(),
	}

	s.hub.register <- client
	go client.writePump()
	go client.readPump()

	if s.presence != nil {
		if err := s.presence.AddMember(r.Context(), docID, client.id); err != nil {
			s.log.Warn().Err(err).Msg("presence add")
		}
	}

	client.sendDocumentState(session)
}

// session returns the live session for a document, creating and
// warm-starting it on first use.
func (s *Service) session(ctx context.Context, docID string) *Session {
	s.mu.RLock()
	session, ok := s.sessions[docID]
	s.mu.RUnlock()
	if ok {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok = s.sessions[docID]; ok {
		return session
	}

	content, revision := s.loadDocument(ctx, docID)
	session = &Session{
		id:           docID,
		server:       ot.NewServer(content),
		selections:   NewSelectionRegistry(),
		baseRevision: revision,
	}
	s.sessions[docID] = session

	s.log.Info().Str("document", docID).Uint64("revision", revision).Msg("session opened")
	return session
}

// loadDocument recovers a document from the cache, then the store. Any
// failure starts the document empty; the session still works.
func (s *Service) loadDocument(ctx context.Context, docID string) (string, uint64) {
	if s.cache != nil {
		if content, revision, err := s.cache.GetSnapshot(ctx, docID); err == nil {
			return content, revision
		}
	}
	if s.store != nil {
		content, revision, err := s.store.LoadSnapshot(ctx, docID)
		if err != nil {
			s.log.Warn().Err(err).Str("document", docID).Msg("load snapshot, starting empty")
			return "", 0
		}
		return content, revision
	}
	return "", 0
}

// ReceiveOperation feeds a client operation into the document's server,
// updates the stored selections and persists the result. It returns the
// transformed operation for broadcast.
func (s *Service) ReceiveOperation(ctx context.Context, docID, clientID string, revision uint64, op *ot.TextOperation, sel *ot.Selection) (*ot.TextOperation, error) {
	session := s.session(ctx, docID)

	session.mu.Lock()
	accepted, err := session.server.ReceiveOperation(revision, op)
	if err != nil {
		session.mu.Unlock()
		s.opsRejected.Add(1)
		return nil, err
	}
	content := session.server.Document()
	newRevision := session.baseRevision + session.server.Revision()
	session.mu.Unlock()

	session.selections.TransformAll(accepted, clientID)
	if sel != nil {
		session.selections.Update(clientID, *sel)
	}
	s.opsAccepted.Add(1)

	if s.store != nil {
		if err := s.store.AppendOperation(ctx, docID, newRevision, accepted); err != nil {
			s.log.Error().Err(err).Str("document", docID).Msg("append operation")
		}
		if err := s.store.SaveSnapshot(ctx, docID, content, newRevision); err != nil {
			s.log.Error().Err(err).Str("document", docID).Msg("save snapshot")
		}
	}
	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, docID, content, newRevision); err != nil {
			s.log.Warn().Err(err).Str("document", docID).Msg("cache snapshot")
		}
	}

	return accepted, nil
}

// ReceiveSelection records a client's selection update.
func (s *Service) ReceiveSelection(ctx context.Context, docID, clientID string, sel ot.Selection) {
	session := s.session(ctx, docID)
	session.selections.Update(clientID, sel)
}

// clientLeft cleans a departed client out of its session.
func (s *Service) clientLeft(client *Client) {
	s.mu.RLock()
	session, ok := s.sessions[client.documentID]
	s.mu.RUnlock()
	if ok {
		session.selections.Remove(client.id)
	}
	if s.presence != nil {
		if err := s.presence.RemoveMember(context.Background(), client.documentID, client.id); err != nil {
			s.log.Warn().Err(err).Msg("presence remove")
		}
	}
}

// Stats reports service and hub counters.
func (s *Service) Stats() map[string]any {
	stats := s.hub.Stats()
	stats["ops_accepted"] = s.opsAccepted.Load()
	stats["ops_rejected"] = s.opsRejected.Load()

	s.mu.RLock()
	stats["open_sessions"] = len(s.sessions)
	s.mu.RUnlock()
	return stats
}

// cleanupLoop drops stale selections on a timer.
func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		sessions := make([]*Session, 0, len(s.sessions))
		for _, session := range s.sessions {
			sessions = append(sessions, session)
		}
		s.mu.RUnlock()

		for _, session := range sessions {
			session.selections.CleanupStale(s.config.SelectionTTL)
		}
	}
}
