// Package v0 provides the REST API handlers for the gateway.
package v0

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendera/backoffice-gateway/internal/advisor"
	"github.com/tendera/backoffice-gateway/internal/coordinator"
	"github.com/tendera/backoffice-gateway/internal/notify"
	"github.com/tendera/backoffice-gateway/internal/query"
	"github.com/tendera/backoffice-gateway/internal/remote"
	"github.com/tendera/backoffice-gateway/internal/resource"
	"github.com/tendera/backoffice-gateway/internal/selection"
	"github.com/tendera/backoffice-gateway/internal/versions"
)

// ViewIDHeader carries the caller's view identity; cache entries acquired
// under it are destroyed when the view is released.
const ViewIDHeader = "X-View-ID"

// ReadinessChecker reports whether the upstream is reachable.
type ReadinessChecker func(ctx context.Context) error

// Deps bundles everything the v0 routes need.
type Deps struct {
	Queries     *query.Runner
	Coordinator *coordinator.Coordinator
	Selections  *selection.Registry
	Notices     *notify.Hub
	Advisor     advisor.Scorer
	Graph       *resource.Graph
	Readiness   ReadinessChecker
}

// Routes defines the routes for the gateway API with dependency injection
type Routes struct {
	deps Deps
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(deps Deps) *Routes {
	return &Routes{deps: deps}
}

// Router creates a new router for the gateway API
func Router(deps Deps) http.Handler {
	routes := NewRoutes(deps)

	r := chi.NewRouter()

	r.Get("/resources/{resource}", routes.getResource)
	r.Post("/resources/{resource}/{operation}", routes.executeMutation)
	r.Post("/batch", routes.executeBatch)
	r.Post("/invalidate", routes.invalidate)
	r.Delete("/views/{view}", routes.releaseView)

	r.Route("/selections/{session}", func(r chi.Router) {
		r.Get("/", routes.getSelection)
		r.Post("/select", routes.selectEntities)
		r.Post("/deselect", routes.deselectEntities)
		r.Post("/clear", routes.clearSelection)
		r.Delete("/", routes.endSelectionSession)
	})

	r.Get("/notifications", routes.drainNotifications)
	r.Get("/advisor/tenders/{id}/matches", routes.tenderMatches)

	return r
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ReadResponse is the cached-read result for one resource query.
type ReadResponse struct {
	Resource  string          `json:"resource"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsLoading bool            `json:"isLoading"`
	IsError   bool            `json:"isError"`
	Error     string          `json:"error,omitempty"`
	Stale     bool            `json:"stale"`
}

// MutationRequest is the body of a single mutation call.
type MutationRequest struct {
	Payload        map[string]any `json:"payload,omitempty"`
	EntityID       string         `json:"entityId,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
}

// MutationResponse reports a successful mutation.
type MutationResponse struct {
	Status      string          `json:"status"`
	Data        json.RawMessage `json:"data,omitempty"`
	Invalidated []string        `json:"invalidated,omitempty"`
}

// BatchRequest is the body of a batch call; requests run in order.
type BatchRequest struct {
	Requests []BatchEntry `json:"requests"`
}

// BatchEntry is one request inside a batch.
type BatchEntry struct {
	Resource       string         `json:"resource"`
	Operation      string         `json:"operation"`
	Payload        map[string]any `json:"payload,omitempty"`
	EntityID       string         `json:"entityId,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
}

// BatchResponse carries one outcome per request, in input order.
type BatchResponse struct {
	Outcomes []BatchOutcome `json:"outcomes"`
}

// BatchOutcome is the terminal state of one batch entry.
type BatchOutcome struct {
	Status      string          `json:"status"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	Kind        string          `json:"kind,omitempty"`
	Invalidated []string        `json:"invalidated,omitempty"`
}

// InvalidateRequest names resources to mark stale.
type InvalidateRequest struct {
	Resources      []string `json:"resources"`
	WithDependents bool     `json:"withDependents,omitempty"`
}

// InvalidateResponse lists the resource keys that were marked.
type InvalidateResponse struct {
	Invalidated []string `json:"invalidated"`
}

// SelectionRequest names entities for selection operations.
type SelectionRequest struct {
	Resource string   `json:"resource,omitempty"`
	IDs      []string `json:"ids"`
}

// SelectionResponse is the current selection of one session.
type SelectionResponse struct {
	Resource string   `json:"resource"`
	IDs      []string `json:"ids"`
}

// NotificationsResponse carries drained notices in arrival order.
type NotificationsResponse struct {
	Notifications []notify.Notice `json:"notifications"`
}

// MatchesResponse is the advisor suggestion list for a tender.
type MatchesResponse struct {
	TenderID string          `json:"tenderId"`
	Matches  []advisor.Match `json:"matches"`
}

// getResource handles GET /v0/resources/{resource}
//
// Query params pass through to the upstream query; the view header scopes
// cache entry ownership.
func (rr *Routes) getResource(w http.ResponseWriter, r *http.Request) {
	res := chi.URLParam(r, "resource")
	if !rr.deps.Graph.Known(res) {
		rr.writeErrorResponse(w, "unknown resource "+res, http.StatusNotFound)
		return
	}

	// Without an owning view the entry would never be released.
	viewID := r.Header.Get(ViewIDHeader)
	if viewID == "" {
		rr.writeErrorResponse(w, ViewIDHeader+" header is required", http.StatusBadRequest)
		return
	}

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	result := rr.deps.Queries.Get(r.Context(), viewID, res, params)

	resp := ReadResponse{
		Resource:  res,
		Data:      result.Data,
		IsLoading: result.IsLoading,
		IsError:   result.IsError,
		Stale:     result.Stale,
	}
	if result.Err != nil {
		resp.Error = remote.UserMessageOf(result.Err)
	}
	rr.writeJSONResponse(w, resp)
}

// executeMutation handles POST /v0/resources/{resource}/{operation}
//
// The response always carries the upstream message verbatim on failure so
// the client can show it next to the form that caused it.
func (rr *Routes) executeMutation(w http.ResponseWriter, r *http.Request) {
	var body MutationRequest
	if err := decodeJSONBody(r, &body); err != nil {
		rr.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome := rr.deps.Coordinator.Execute(r.Context(), coordinator.Request{
		Resource:       chi.URLParam(r, "resource"),
		Operation:      chi.URLParam(r, "operation"),
		Payload:        body.Payload,
		EntityID:       body.EntityID,
		IdempotencyKey: body.IdempotencyKey,
	}, coordinator.Handlers{})

	switch {
	case outcome.Succeeded():
		rr.writeJSONResponse(w, MutationResponse{
			Status:      string(outcome.Status),
			Data:        outcome.Data,
			Invalidated: outcome.Invalidated,
		})
	case outcome.Discarded():
		// The caller went away mid-flight; nobody is reading this.
		rr.writeErrorResponse(w, "request cancelled", http.StatusRequestTimeout)
	default:
		rr.writeKindedError(w, outcome.Message, outcome.ErrorKind)
	}
}

// executeBatch handles POST /v0/batch
//
// Batches are fail-open, so the HTTP status is 200 whenever the batch itself
// ran; per-request failures live in the outcome list.
func (rr *Routes) executeBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := decodeJSONBody(r, &body); err != nil {
		rr.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Requests) == 0 {
		rr.writeErrorResponse(w, "batch requires at least one request", http.StatusBadRequest)
		return
	}

	reqs := make([]coordinator.Request, len(body.Requests))
	for i, entry := range body.Requests {
		reqs[i] = coordinator.Request{
			Resource:       entry.Resource,
			Operation:      entry.Operation,
			Payload:        entry.Payload,
			EntityID:       entry.EntityID,
			IdempotencyKey: entry.IdempotencyKey,
		}
	}

	outcomes := rr.deps.Coordinator.Batch(r.Context(), reqs)

	resp := BatchResponse{Outcomes: make([]BatchOutcome, len(outcomes))}
	for i, outcome := range outcomes {
		out := BatchOutcome{
			Status:      string(outcome.Status),
			Data:        outcome.Data,
			Invalidated: outcome.Invalidated,
		}
		if outcome.Failed() {
			out.Error = outcome.Message
			out.Kind = string(outcome.ErrorKind)
		}
		resp.Outcomes[i] = out
	}
	rr.writeJSONResponse(w, resp)
}

// invalidate handles POST /v0/invalidate
func (rr *Routes) invalidate(w http.ResponseWriter, r *http.Request) {
	var body InvalidateRequest
	if err := decodeJSONBody(r, &body); err != nil {
		rr.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Resources) == 0 {
		rr.writeErrorResponse(w, "resources cannot be empty", http.StatusBadRequest)
		return
	}

	marked := body.Resources
	if body.WithDependents {
		marked = rr.deps.Coordinator.InvalidateWithDependents(body.Resources...)
	} else {
		rr.deps.Coordinator.Invalidate(body.Resources...)
	}
	rr.writeJSONResponse(w, InvalidateResponse{Invalidated: marked})
}

// releaseView handles DELETE /v0/views/{view}: the view unmounted, its cache
// entries go away.
func (rr *Routes) releaseView(w http.ResponseWriter, r *http.Request) {
	rr.deps.Queries.Release(chi.URLParam(r, "view"))
	w.WriteHeader(http.StatusNoContent)
}

// getSelection handles GET /v0/selections/{session}
func (rr *Routes) getSelection(w http.ResponseWriter, r *http.Request) {
	res, ids := rr.deps.Selections.Selected(chi.URLParam(r, "session"))
	if ids == nil {
		ids = []string{}
	}
	rr.writeJSONResponse(w, SelectionResponse{Resource: res, IDs: ids})
}

// selectEntities handles POST /v0/selections/{session}/select
func (rr *Routes) selectEntities(w http.ResponseWriter, r *http.Request) {
	var body SelectionRequest
	if err := decodeJSONBody(r, &body); err != nil {
		rr.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Resource == "" {
		rr.writeErrorResponse(w, "resource is required", http.StatusBadRequest)
		return
	}
	if !rr.deps.Graph.Known(body.Resource) {
		rr.writeErrorResponse(w, "unknown resource "+body.Resource, http.StatusNotFound)
		return
	}

	rr.deps.Selections.Select(chi.URLParam(r, "session"), body.Resource, body.IDs...)
	w.WriteHeader(http.StatusNoContent)
}

// deselectEntities handles POST /v0/selections/{session}/deselect
func (rr *Routes) deselectEntities(w http.ResponseWriter, r *http.Request) {
	var body SelectionRequest
	if err := decodeJSONBody(r, &body); err != nil {
		rr.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rr.deps.Selections.Deselect(chi.URLParam(r, "session"), body.IDs...)
	w.WriteHeader(http.StatusNoContent)
}

// clearSelection handles POST /v0/selections/{session}/clear
func (rr *Routes) clearSelection(w http.ResponseWriter, r *http.Request) {
	rr.deps.Selections.Clear(chi.URLParam(r, "session"))
	w.WriteHeader(http.StatusNoContent)
}

// endSelectionSession handles DELETE /v0/selections/{session}
func (rr *Routes) endSelectionSession(w http.ResponseWriter, r *http.Request) {
	rr.deps.Selections.EndSession(chi.URLParam(r, "session"))
	w.WriteHeader(http.StatusNoContent)
}

// drainNotifications handles GET /v0/notifications
func (rr *Routes) drainNotifications(w http.ResponseWriter, _ *http.Request) {
	notices := rr.deps.Notices.Drain()
	if notices == nil {
		notices = []notify.Notice{}
	}
	rr.writeJSONResponse(w, NotificationsResponse{Notifications: notices})
}

// tenderMatches handles GET /v0/advisor/tenders/{id}/matches
func (rr *Routes) tenderMatches(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "id")

	matches, err := rr.deps.Advisor.TenderMatches(r.Context(), tenderID)
	if err != nil {
		slog.Error("Advisor lookup failed", "tender", tenderID, "error", err)
		rr.writeErrorResponse(w, "supplier suggestions unavailable", http.StatusBadGateway)
		return
	}
	if matches == nil {
		matches = []advisor.Match{}
	}
	rr.writeJSONResponse(w, MatchesResponse{TenderID: tenderID, Matches: matches})
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(readiness ReadinessChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(readiness))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler handles readiness check requests
func readinessHandler(readiness ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if readiness != nil {
			if err := readiness(r.Context()); err != nil {
				errorResp := ErrorResponse{
					Error: "upstream not ready: " + err.Error(),
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				if encodeErr := json.NewEncoder(w).Encode(errorResp); encodeErr != nil {
					slog.Error("Failed to encode readiness error response", "error", encodeErr)
				}
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.Error("Failed to encode version info", "error", err)
	}
}

// writeKindedError maps a failure kind to its HTTP status: validation 422,
// conflict 409, transient 502.
func (rr *Routes) writeKindedError(w http.ResponseWriter, message string, kind remote.Kind) {
	status := http.StatusBadGateway
	switch kind {
	case remote.KindValidation:
		status = http.StatusUnprocessableEntity
	case remote.KindConflict:
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Kind: string(kind)}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// writeJSONResponse writes a JSON response with the given data
func (*Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return &bodyError{err: err}
	}
	return nil
}

type bodyError struct {
	err error
}

func (e *bodyError) Error() string { return "invalid request body: " + e.err.Error() }

func (e *bodyError) Unwrap() error { return e.err }
