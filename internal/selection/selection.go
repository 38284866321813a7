// Package selection centralizes the bulk-selection state of table views.
// Each view session owns one selection set bound to a resource; the mutation
// coordinator prunes deleted entity IDs so no view is left holding a
// selection that points at a row that no longer exists.
package selection

import (
	"sort"
	"sync"
)

type session struct {
	resource string
	ids      map[string]struct{}
}

// Registry holds the selection sets of all live view sessions.
// Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry creates an empty selection registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// Select adds ids to the session's selection set. A session is bound to the
// resource of its first Select; selecting under a different resource resets
// the set (the view navigated to another table).
func (r *Registry) Select(sessionID, resource string, ids ...string) {
	if sessionID == "" || resource == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.resource != resource {
		s = &session{resource: resource, ids: make(map[string]struct{})}
		r.sessions[sessionID] = s
	}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

// Deselect removes ids from the session's selection set.
func (r *Registry) Deselect(sessionID string, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Selected returns the session's selected IDs in sorted order, along with
// the resource the selection is bound to.
func (r *Registry) Selected(sessionID string) (string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return "", nil
	}

	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return s.resource, ids
}

// Clear empties the session's selection set but keeps the session alive.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.ids = make(map[string]struct{})
	}
}

// EndSession removes the session entirely (view unmounted).
func (r *Registry) EndSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// PruneEntity removes id from every session bound to resource. Called by the
// coordinator after a successful delete so stale selections cannot linger.
// Returns the number of sessions that were holding the id.
func (r *Registry) PruneEntity(resource, id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for _, s := range r.sessions {
		if s.resource != resource {
			continue
		}
		if _, ok := s.ids[id]; ok {
			delete(s.ids, id)
			pruned++
		}
	}
	return pruned
}
