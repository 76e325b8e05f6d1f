package editor

import (
	"sync"
	"time"

	"collab-sync/pkg/ot"
)

// SelectionRegistry tracks the last known selection of every client in a
// document. Selections are kept valid by transforming them through each
// accepted operation, so late joiners and reconnecting clients see cursors
// that match the current document.
type SelectionRegistry struct {
	mu         sync.RWMutex
	selections map[string]*clientSelection
}

type clientSelection struct {
	selection ot.Selection
	updatedAt time.Time
}

// NewSelectionRegistry creates an empty registry.
func NewSelectionRegistry() *SelectionRegistry {
	return &SelectionRegistry{
		selections: make(map[string]*clientSelection),
	}
}

// Update replaces a client's selection. The newer selection wins outright.
func (r *SelectionRegistry) Update(clientID string, sel ot.Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.selections[clientID]; ok {
		existing.selection = existing.selection.Compose(sel)
		existing.updatedAt = time.Now()
		return
	}
	r.selections[clientID] = &clientSelection{
		selection: sel,
		updatedAt: time.Now(),
	}
}

// TransformAll maps every stored selection through an accepted operation.
// The operation's author is skipped: its selection already reflects the
// edit.
func (r *SelectionRegistry) TransformAll(op *ot.TextOperation, exceptClientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, cs := range r.selections {
		if id == exceptClientID {
			continue
		}
		cs.selection = cs.selection.Transform(op)
	}
}

// Remove drops a client's selection.
func (r *SelectionRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.selections, clientID)
}

// All returns every selection except the requesting client's own.
func (r *SelectionRegistry) All(excludeClientID string) []ClientSelection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ClientSelection
	for id, cs := range r.selections {
		if id == excludeClientID {
			continue
		}
		sel := cs.selection
		out = append(out, ClientSelection{ClientID: id, Selection: &sel})
	}
	return out
}

// CleanupStale removes selections that have not been refreshed recently.
func (r *SelectionRegistry) CleanupStale(timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, cs := range r.selections {
		if now.Sub(cs.updatedAt) > timeout {
			delete(r.selections, id)
		}
	}
}
