package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MutationMetricsMeterName is the name used for the mutation metrics meter
	MutationMetricsMeterName = "github.com/tendera/backoffice-gateway/coordinator"

	// CacheMetricsMeterName is the name used for the cache metrics meter
	CacheMetricsMeterName = "github.com/tendera/backoffice-gateway/cache"
)

// MutationMetrics holds the OpenTelemetry instruments for mutation metrics
type MutationMetrics struct {
	mutationDuration metric.Float64Histogram
	mutationsTotal   metric.Int64Counter
	inFlight         metric.Int64UpDownCounter
	batchSize        metric.Int64Histogram
	selectionsPruned metric.Int64Counter
}

// NewMutationMetrics creates a new MutationMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewMutationMetrics(provider metric.MeterProvider) (*MutationMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(MutationMetricsMeterName)

	mutationDuration, err := meter.Float64Histogram(
		"tendera_gw_mutation_duration_seconds",
		metric.WithDescription("Duration of mutation executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	mutationsTotal, err := meter.Int64Counter(
		"tendera_gw_mutations_total",
		metric.WithDescription("Total number of mutation executions by outcome"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"tendera_gw_mutations_in_flight",
		metric.WithDescription("Number of currently in-flight mutations"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram(
		"tendera_gw_batch_size",
		metric.WithDescription("Number of requests per batch execution"),
		metric.WithUnit("{request}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return nil, err
	}

	selectionsPruned, err := meter.Int64Counter(
		"tendera_gw_selections_pruned_total",
		metric.WithDescription("Selection entries removed after successful deletes"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &MutationMetrics{
		mutationDuration: mutationDuration,
		mutationsTotal:   mutationsTotal,
		inFlight:         inFlight,
		batchSize:        batchSize,
		selectionsPruned: selectionsPruned,
	}, nil
}

// RecordMutation records one finished mutation execution.
func (m *MutationMetrics) RecordMutation(ctx context.Context, resource, operation, status string, duration time.Duration) {
	if m == nil || m.mutationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("resource", resource),
		attribute.String("operation", operation),
		attribute.String("status", status),
	}

	m.mutationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.mutationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// AddInFlight adjusts the in-flight mutation gauge by delta.
func (m *MutationMetrics) AddInFlight(ctx context.Context, delta int64) {
	if m == nil || m.inFlight == nil {
		return
	}
	m.inFlight.Add(ctx, delta)
}

// RecordBatch records the size of one batch execution.
func (m *MutationMetrics) RecordBatch(ctx context.Context, size int) {
	if m == nil || m.batchSize == nil {
		return
	}
	m.batchSize.Record(ctx, int64(size))
}

// RecordSelectionsPruned records selection entries removed by a delete.
func (m *MutationMetrics) RecordSelectionsPruned(ctx context.Context, resource string, count int64) {
	if m == nil || m.selectionsPruned == nil || count == 0 {
		return
	}
	m.selectionsPruned.Add(ctx, count, metric.WithAttributes(attribute.String("resource", resource)))
}

// CacheMetrics holds the OpenTelemetry instruments for cache metrics
type CacheMetrics struct {
	invalidations metric.Int64Counter
	entriesTotal  metric.Int64Gauge
}

// NewCacheMetrics creates a new CacheMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewCacheMetrics(provider metric.MeterProvider) (*CacheMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CacheMetricsMeterName)

	invalidations, err := meter.Int64Counter(
		"tendera_gw_cache_invalidations_total",
		metric.WithDescription("Cache entries marked stale by mutations"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	entriesTotal, err := meter.Int64Gauge(
		"tendera_gw_cache_entries",
		metric.WithDescription("Number of live cache entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		invalidations: invalidations,
		entriesTotal:  entriesTotal,
	}, nil
}

// RecordInvalidations records cache entries marked stale for a resource set.
func (m *CacheMetrics) RecordInvalidations(ctx context.Context, resource string, count int64) {
	if m == nil || m.invalidations == nil || count == 0 {
		return
	}
	m.invalidations.Add(ctx, count, metric.WithAttributes(attribute.String("resource", resource)))
}

// RecordEntriesTotal records the current number of live cache entries.
func (m *CacheMetrics) RecordEntriesTotal(ctx context.Context, count int64) {
	if m == nil || m.entriesTotal == nil {
		return
	}
	m.entriesTotal.Record(ctx, count)
}
