// Package cache holds the client-facing read cache: the last-known state of
// every (resource, params) query a mounted view has asked for. Entries are
// owned by the store; readers get snapshots and subscriptions, writers are
// the query runner and the mutation coordinator only.
package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// State is the lifecycle state of a cache entry. An entry is in exactly one
// state at a time.
type State string

const (
	// StateLoading means a fetch is in progress and no data has arrived yet.
	StateLoading State = "Loading"

	// StateReady means the entry holds the last successfully fetched data.
	StateReady State = "Ready"

	// StateErrored means the last fetch failed and no usable data is held.
	StateErrored State = "Errored"
)

// Entry is a read-only snapshot of one cache entry.
type Entry struct {
	Key       string
	Resource  string
	Params    map[string]string
	State     State
	Data      json.RawMessage
	Err       error
	Stale     bool
	FetchedAt time.Time
}

// IsLoading reports whether the entry is waiting on its first data.
func (e Entry) IsLoading() bool { return e.State == StateLoading }

// IsReady reports whether the entry holds fetched data.
func (e Entry) IsReady() bool { return e.State == StateReady }

// IsErrored reports whether the last fetch failed.
func (e Entry) IsErrored() bool { return e.State == StateErrored }

type entry struct {
	resource  string
	params    map[string]string
	state     State
	data      json.RawMessage
	err       error
	stale     bool
	fetchedAt time.Time

	owners   map[string]struct{}
	watchers map[int]chan struct{}
}

// Store is the shared cache entry map. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	nextWatchID int
	now         func() time.Time
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Acquire registers viewID as an owner of the (resource, params) entry,
// creating it in Loading state on first read. Returns the entry key.
func (s *Store) Acquire(viewID, resource string, params map[string]string) string {
	key := EntryKey(resource, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{
			resource: resource,
			params:   cloneParams(params),
			state:    StateLoading,
			owners:   make(map[string]struct{}),
			watchers: make(map[int]chan struct{}),
		}
		s.entries[key] = e
	}
	if viewID != "" {
		e.owners[viewID] = struct{}{}
	}
	return key
}

// ReleaseView drops viewID's ownership of every entry it holds. Entries with
// no remaining owners are destroyed; there is no cross-view persistence.
func (s *Store) ReleaseView(viewID string) {
	if viewID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if _, ok := e.owners[viewID]; !ok {
			continue
		}
		delete(e.owners, viewID)
		if len(e.owners) == 0 {
			s.closeWatchersLocked(e)
			delete(s.entries, key)
		}
	}
}

// MarkLoading transitions the entry to Loading ahead of a fetch. Existing
// data is cleared so the entry is never Loading and Ready at once.
func (s *Store) MarkLoading(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.state = StateLoading
	e.data = nil
	e.err = nil
	s.notifyLocked(e)
}

// SetReady stores freshly fetched data and clears the staleness marker.
func (s *Store) SetReady(key string, data json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.state = StateReady
	e.data = data
	e.err = nil
	e.stale = false
	e.fetchedAt = s.now()
	s.notifyLocked(e)
}

// SetErrored records a failed fetch.
func (s *Store) SetErrored(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return
	}
	e.state = StateErrored
	e.data = nil
	e.err = err
	e.stale = false
	s.notifyLocked(e)
}

// Snapshot returns a copy of the entry's current state.
func (s *Store) Snapshot(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return s.snapshotLocked(key, e), true
}

// SnapshotResource returns snapshots of every entry for the given resource.
func (s *Store) SnapshotResource(resource string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for key, e := range s.entries {
		if e.resource == resource {
			out = append(out, s.snapshotLocked(key, e))
		}
	}
	return out
}

// Invalidate marks every entry whose resource is in resources as stale and
// notifies watchers. Marking is idempotent: a stale entry stays stale and is
// not re-notified. No fetch is triggered here; refetch happens on next read.
func (s *Store) Invalidate(resources ...string) int {
	set := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		set[r] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for _, e := range s.entries {
		if _, ok := set[e.resource]; !ok {
			continue
		}
		if e.stale {
			continue
		}
		e.stale = true
		marked++
		s.notifyLocked(e)
	}
	return marked
}

// NeedsFetch reports whether a read of key must go to the remote: the entry
// is missing, stale, errored, or has never completed a fetch. Only a fresh
// Ready entry is served from cache.
func (s *Store) NeedsFetch(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return true
	}
	return e.stale || e.state != StateReady
}

// Watch subscribes to change notifications for key. The returned channel
// receives a signal on every state change or invalidation; cancel must be
// called when the watcher goes away.
func (s *Store) Watch(key string) (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		closed := make(chan struct{})
		close(closed)
		return closed, func() {}
	}

	id := s.nextWatchID
	s.nextWatchID++
	ch := make(chan struct{}, 1)
	e.watchers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.entries[key]; ok {
			delete(e.watchers, id)
		}
	}
	return ch, cancel
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) snapshotLocked(key string, e *entry) Entry {
	return Entry{
		Key:       key,
		Resource:  e.resource,
		Params:    cloneParams(e.params),
		State:     e.state,
		Data:      e.data,
		Err:       e.err,
		Stale:     e.stale,
		FetchedAt: e.fetchedAt,
	}
}

// notifyLocked signals every watcher without blocking; a watcher that has a
// pending signal does not need another.
func (s *Store) notifyLocked(e *entry) {
	for _, ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) closeWatchersLocked(e *entry) {
	for id, ch := range e.watchers {
		close(ch)
		delete(e.watchers, id)
	}
}

func cloneParams(params map[string]string) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
