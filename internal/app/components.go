package app

import (
	"github.com/tendera/backoffice-gateway/internal/advisor"
	"github.com/tendera/backoffice-gateway/internal/cache"
	"github.com/tendera/backoffice-gateway/internal/coordinator"
	"github.com/tendera/backoffice-gateway/internal/notify"
	"github.com/tendera/backoffice-gateway/internal/query"
	"github.com/tendera/backoffice-gateway/internal/remote"
	"github.com/tendera/backoffice-gateway/internal/resource"
	"github.com/tendera/backoffice-gateway/internal/selection"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Client is the upstream RPC client used by reads, mutations and the
	// advisor
	Client remote.Client

	// Store holds the shared read cache
	Store *cache.Store

	// Queries serves cached collection reads
	Queries *query.Runner

	// Coordinator executes mutations and reconciles cache and selections
	Coordinator *coordinator.Coordinator

	// Selections tracks per-session bulk selections
	Selections *selection.Registry

	// Notices buffers user-facing mutation notifications
	Notices *notify.Hub

	// Advisor produces supplier suggestions for tenders
	Advisor advisor.Scorer

	// Graph is the resource dependency map
	Graph *resource.Graph
}
