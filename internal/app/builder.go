package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"

	"github.com/tendera/backoffice-gateway/internal/advisor"
	"github.com/tendera/backoffice-gateway/internal/api"
	v0 "github.com/tendera/backoffice-gateway/internal/api/v0"
	"github.com/tendera/backoffice-gateway/internal/cache"
	"github.com/tendera/backoffice-gateway/internal/config"
	"github.com/tendera/backoffice-gateway/internal/coordinator"
	"github.com/tendera/backoffice-gateway/internal/notify"
	"github.com/tendera/backoffice-gateway/internal/query"
	"github.com/tendera/backoffice-gateway/internal/remote"
	"github.com/tendera/backoffice-gateway/internal/selection"
	"github.com/tendera/backoffice-gateway/internal/telemetry"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// GatewayAppOptions is a function that configures the gateway app builder
type GatewayAppOptions func(*gatewayAppConfig) error

// gatewayAppConfig builds a GatewayApp using the builder pattern.
// It supports dependency injection for testing while providing sensible
// defaults for production.
type gatewayAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	client    remote.Client
	scorer    advisor.Scorer
	readiness v0.ReadinessChecker

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider metric.MeterProvider
}

func baseConfig(opts ...GatewayAppOptions) (*gatewayAppConfig, error) {
	cfg := &gatewayAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewGatewayApp creates a new gateway app with the given configuration
func NewGatewayApp(
	ctx context.Context,
	opts ...GatewayAppOptions,
) (*GatewayApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.GetAddress()
	}

	components, err := buildComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	return &GatewayApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("address is not a valid host:port: %w", err)
		}
		if port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRemoteClient allows injecting a custom upstream client (for testing)
func WithRemoteClient(c remote.Client) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.client = c
		return nil
	}
}

// WithScorer allows injecting a custom advisor scorer (for testing)
func WithScorer(s advisor.Scorer) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.scorer = s
		return nil
	}
}

// WithReadinessChecker allows injecting a custom readiness probe (for testing)
func WithReadinessChecker(r v0.ReadinessChecker) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.readiness = r
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for metrics
func WithMeterProvider(mp metric.MeterProvider) GatewayAppOptions {
	return func(cfg *gatewayAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// buildComponents wires the cache, query runner, coordinator and advisor
// around the upstream client.
func buildComponents(b *gatewayAppConfig) (*AppComponents, error) {
	slog.Info("Initializing gateway components")

	graph, err := b.config.BuildGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build resource graph: %w", err)
	}

	if b.client == nil {
		client, err := remote.NewHTTPClient(
			b.config.Upstream.Endpoint,
			remote.WithTimeout(b.config.Upstream.GetTimeout()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create upstream client: %w", err)
		}
		b.client = client
	}

	store := cache.NewStore()
	selections := selection.NewRegistry()
	hub := notify.NewHub(b.config.GetNotificationCapacity())

	coordOpts := []coordinator.Option{
		coordinator.WithSelections(selections),
		coordinator.WithNotifier(hub),
	}

	if b.meterProvider != nil {
		mutationMetrics, err := telemetry.NewMutationMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create mutation metrics: %w", err)
		}
		cacheMetrics, err := telemetry.NewCacheMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache metrics: %w", err)
		}
		coordOpts = append(coordOpts,
			coordinator.WithMetrics(mutationMetrics),
			coordinator.WithCacheMetrics(cacheMetrics),
		)
		slog.Info("Mutation metrics enabled")
	}

	if b.scorer == nil {
		b.scorer = advisor.NewStubScorer(b.client)
	}

	components := &AppComponents{
		Client:      b.client,
		Store:       store,
		Queries:     query.NewRunner(store, b.client),
		Coordinator: coordinator.New(b.client, graph, store, coordOpts...),
		Selections:  selections,
		Notices:     hub,
		Advisor:     b.scorer,
		Graph:       graph,
	}

	slog.Info("Gateway components initialized successfully")
	return components, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *gatewayAppConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics middleware goes first so it captures every request.
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, b.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}

	readiness := b.readiness
	if readiness == nil {
		endpoint := b.config.Upstream.Endpoint
		readiness = func(ctx context.Context) error {
			return remote.Probe(ctx, endpoint)
		}
	}

	router := api.NewServer(v0.Deps{
		Queries:     components.Queries,
		Coordinator: components.Coordinator,
		Selections:  components.Selections,
		Notices:     components.Notices,
		Advisor:     components.Advisor,
		Graph:       components.Graph,
		Readiness:   readiness,
	}, api.WithMiddlewares(b.middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
