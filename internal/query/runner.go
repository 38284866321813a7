// Package query implements the read side of the cache: fetch-on-demand of
// (resource, params) queries with staleness-driven refetch. Writers never go
// through here; they use the coordinator, which only marks entries stale.
package query

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/tendera/backoffice-gateway/internal/cache"
	"github.com/tendera/backoffice-gateway/internal/remote"
)

// ReadOperation is the remote operation used to fetch collection queries.
const ReadOperation = "query"

// Result mirrors what a UI data hook sees: data, loading flag, error flag.
type Result struct {
	Data      json.RawMessage
	IsLoading bool
	IsError   bool
	Err       error
	Stale     bool
}

// Runner serves cached reads, going to the remote only when the cache entry
// is missing, stale, or errored. Concurrent reads of the same key collapse
// into a single remote fetch.
type Runner struct {
	store  *cache.Store
	client remote.Client
	group  singleflight.Group
}

// NewRunner creates a query runner over the given store and remote client.
func NewRunner(store *cache.Store, client remote.Client) *Runner {
	return &Runner{
		store:  store,
		client: client,
	}
}

// Get returns the current state of the (resource, params) query for viewID,
// fetching from the remote first if the cache cannot serve it. Fetch
// failures are reported in the Result, never returned as an error.
func (r *Runner) Get(ctx context.Context, viewID, resource string, params map[string]string) Result {
	key := r.store.Acquire(viewID, resource, params)

	if !r.store.NeedsFetch(key) {
		return r.snapshot(key)
	}

	// Collapse concurrent fetches of the same key into one remote call.
	_, _, _ = r.group.Do(key, func() (any, error) {
		r.fetch(ctx, key, resource, params)
		return nil, nil
	})

	return r.snapshot(key)
}

// Peek returns the cache state without triggering a fetch.
func (r *Runner) Peek(resource string, params map[string]string) (Result, bool) {
	entry, ok := r.store.Snapshot(cache.EntryKey(resource, params))
	if !ok {
		return Result{}, false
	}
	return resultOf(entry), true
}

// Release drops all cache entries owned by viewID.
func (r *Runner) Release(viewID string) {
	r.store.ReleaseView(viewID)
}

func (r *Runner) fetch(ctx context.Context, key, resource string, params map[string]string) {
	// Recheck under singleflight: another caller may have completed the
	// fetch while this one was queued.
	if !r.store.NeedsFetch(key) {
		return
	}

	if snap, ok := r.store.Snapshot(key); !ok || !snap.IsReady() {
		// No previous data to show while fetching.
		r.store.MarkLoading(key)
	}

	payload := make(map[string]any, len(params))
	for k, v := range params {
		payload[k] = v
	}

	data, err := r.client.Call(ctx, resource, ReadOperation, payload)
	if err != nil {
		slog.Warn("Query fetch failed", "resource", resource, "error", err)
		r.store.SetErrored(key, err)
		return
	}
	r.store.SetReady(key, data)
}

func (r *Runner) snapshot(key string) Result {
	entry, ok := r.store.Snapshot(key)
	if !ok {
		return Result{IsLoading: true}
	}
	return resultOf(entry)
}

func resultOf(entry cache.Entry) Result {
	return Result{
		Data:      entry.Data,
		IsLoading: entry.IsLoading(),
		IsError:   entry.IsErrored(),
		Err:       entry.Err,
		Stale:     entry.Stale,
	}
}
