// Package coordinator owns the lifecycle of client-initiated writes: it
// executes mutation requests against the remote API and reconciles the read
// cache, selection sets and user notifications deterministically, whatever
// the remote does. Every page-level create/update/delete/approve flow goes
// through here instead of re-implementing its own success/error plumbing.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendera/backoffice-gateway/internal/cache"
	"github.com/tendera/backoffice-gateway/internal/notify"
	"github.com/tendera/backoffice-gateway/internal/remote"
	"github.com/tendera/backoffice-gateway/internal/resource"
	"github.com/tendera/backoffice-gateway/internal/selection"
	"github.com/tendera/backoffice-gateway/internal/telemetry"
)

// Handlers are the caller's success/error callbacks. The coordinator
// guarantees cache invalidation happens before OnSuccess fires, so a handler
// that triggers navigation cannot race a stale read on the destination view.
type Handlers struct {
	OnSuccess func(data []byte)
	OnError   func(err error)
}

// Coordinator executes mutation requests and keeps cache, selections and
// notifications consistent. Safe for concurrent use; independent executions
// are not serialized against each other.
type Coordinator struct {
	client     remote.Client
	graph      *resource.Graph
	store      *cache.Store
	selections *selection.Registry
	hub        *notify.Hub

	metrics      *telemetry.MutationMetrics
	cacheMetrics *telemetry.CacheMetrics

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithSelections attaches the selection registry pruned on deletes.
func WithSelections(reg *selection.Registry) Option {
	return func(c *Coordinator) {
		c.selections = reg
	}
}

// WithNotifier attaches the notification hub that receives one notice per
// failure (and per success).
func WithNotifier(hub *notify.Hub) Option {
	return func(c *Coordinator) {
		c.hub = hub
	}
}

// WithMetrics attaches mutation metrics. Nil metrics are no-ops.
func WithMetrics(m *telemetry.MutationMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithCacheMetrics attaches cache invalidation metrics.
func WithCacheMetrics(m *telemetry.CacheMetrics) Option {
	return func(c *Coordinator) {
		c.cacheMetrics = m
	}
}

// New creates a coordinator over the remote client, dependency graph and
// cache store.
func New(client remote.Client, graph *resource.Graph, store *cache.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:   client,
		graph:    graph,
		store:    store,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs one mutation request to completion and returns its outcome.
// Failures are routed to handlers.OnError and reported in the outcome; they
// are never returned as a Go error. If ctx is cancelled by the time the
// remote call resolves, the response is discarded: no invalidation, no
// handlers, no notification.
func (c *Coordinator) Execute(ctx context.Context, req Request, handlers Handlers) Outcome {
	start := time.Now()

	if req.Resource == "" || !c.graph.Known(req.Resource) {
		err := &remote.Error{
			Kind:      remote.KindValidation,
			Resource:  req.Resource,
			Operation: req.Operation,
			Message:   "unknown resource " + req.Resource,
		}
		return c.fail(ctx, req, err, handlers, start)
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	id := c.markInFlight(ctx)
	defer c.clearInFlight(ctx, id)

	callCtx := remote.WithIdempotencyKey(ctx, req.IdempotencyKey)
	data, err := c.client.Call(callCtx, req.Resource, req.Operation, req.Payload)

	// Late response: the view that issued this mutation is gone. Leave the
	// cache exactly as it was and tell no one.
	if ctx.Err() != nil {
		c.recordMutation(ctx, req, StatusDiscarded, start)
		return discardedOutcome()
	}

	if err != nil {
		return c.fail(ctx, req, err, handlers, start)
	}

	invalidated := c.invalidateAffected(ctx, req.Resource)

	if req.kind() == OpDelete {
		c.pruneSelections(ctx, req)
	}

	if c.hub != nil {
		c.hub.Success(req.Resource, req.Operation, "")
	}
	safeInvoke(func() {
		if handlers.OnSuccess != nil {
			handlers.OnSuccess(data)
		}
	})

	c.recordMutation(ctx, req, StatusSucceeded, start)
	return successOutcome(data, invalidated)
}

// Batch executes requests strictly in order, one at a time. A failure does
// not abort the rest: every request is attempted exactly once and the
// returned slice has one outcome per request, in input order. Cancelling ctx
// stops new requests from starting; the remainder come back discarded.
func (c *Coordinator) Batch(ctx context.Context, reqs []Request) []Outcome {
	c.metrics.RecordBatch(ctx, len(reqs))

	outcomes := make([]Outcome, len(reqs))
	for i, req := range reqs {
		if ctx.Err() != nil {
			outcomes[i] = discardedOutcome()
			continue
		}
		outcomes[i] = c.Execute(ctx, req, Handlers{})
	}
	return outcomes
}

// Invalidate marks the named resources stale without fetching. Dependents
// are not expanded here; callers that want dependency fan-out go through a
// mutation or expand via the graph themselves.
func (c *Coordinator) Invalidate(resources ...string) {
	c.store.Invalidate(resources...)
}

// InvalidateWithDependents marks each named resource and its transitive
// dependents stale.
func (c *Coordinator) InvalidateWithDependents(resources ...string) []string {
	seen := make(map[string]struct{})
	var all []string
	for _, r := range resources {
		for _, key := range c.graph.Affected(r) {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, key)
		}
	}
	c.store.Invalidate(all...)
	return all
}

// InFlight returns the number of currently executing mutations.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

func (c *Coordinator) fail(ctx context.Context, req Request, err error, handlers Handlers, start time.Time) Outcome {
	if c.hub != nil {
		c.hub.Error(req.Resource, req.Operation, remote.UserMessageOf(err))
	}
	safeInvoke(func() {
		if handlers.OnError != nil {
			handlers.OnError(err)
		}
	})

	c.recordMutation(ctx, req, StatusFailed, start)
	return failureOutcome(err)
}

// invalidateAffected marks the resource and its transitive dependents stale.
// This runs before the caller's success handler, which is what lets a
// navigation in the handler land on a view that refetches.
func (c *Coordinator) invalidateAffected(ctx context.Context, res string) []string {
	affected := c.graph.Affected(res)
	marked := c.store.Invalidate(affected...)
	c.cacheMetrics.RecordInvalidations(ctx, res, int64(marked))
	c.cacheMetrics.RecordEntriesTotal(ctx, int64(c.store.Len()))
	return affected
}

func (c *Coordinator) pruneSelections(ctx context.Context, req Request) {
	if c.selections == nil {
		return
	}
	id := req.entityID()
	if id == "" {
		return
	}
	pruned := c.selections.PruneEntity(req.Resource, id)
	c.metrics.RecordSelectionsPruned(ctx, req.Resource, int64(pruned))
}

func (c *Coordinator) markInFlight(ctx context.Context) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.inFlight[id] = struct{}{}
	c.mu.Unlock()
	c.metrics.AddInFlight(ctx, 1)
	return id
}

func (c *Coordinator) clearInFlight(ctx context.Context, id string) {
	c.mu.Lock()
	delete(c.inFlight, id)
	c.mu.Unlock()
	c.metrics.AddInFlight(ctx, -1)
}

func (c *Coordinator) recordMutation(ctx context.Context, req Request, status Status, start time.Time) {
	c.metrics.RecordMutation(ctx, req.Resource, req.Operation, string(status), time.Since(start))
}

// safeInvoke shields the coordinator from handler panics; the failure
// contract is that nothing escapes this layer.
func safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Mutation handler panicked", "panic", r)
		}
	}()
	fn()
}
