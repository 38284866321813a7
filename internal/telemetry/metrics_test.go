package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tendera/backoffice-gateway/internal/telemetry"
)

func TestNewMutationMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	metrics, err := telemetry.NewMutationMetrics(nil)

	require.NoError(t, err)
	assert.Nil(t, metrics)

	// Nil metrics are safe no-ops.
	metrics.RecordMutation(context.Background(), "expenses", "create", "success", time.Second)
	metrics.AddInFlight(context.Background(), 1)
	metrics.RecordBatch(context.Background(), 3)
	metrics.RecordSelectionsPruned(context.Background(), "expenses", 2)
}

func TestNewCacheMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	metrics, err := telemetry.NewCacheMetrics(nil)

	require.NoError(t, err)
	assert.Nil(t, metrics)

	metrics.RecordInvalidations(context.Background(), "expenses", 3)
	metrics.RecordEntriesTotal(context.Background(), 10)
}

func TestMutationMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := telemetry.NewMutationMetrics(provider)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordMutation(ctx, "expenses", "approve", "success", 50*time.Millisecond)
	metrics.AddInFlight(ctx, 1)
	metrics.AddInFlight(ctx, -1)
	metrics.RecordBatch(ctx, 4)
	metrics.RecordSelectionsPruned(ctx, "expenses", 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := collectMetricNames(rm)
	assert.Contains(t, names, "tendera_gw_mutation_duration_seconds")
	assert.Contains(t, names, "tendera_gw_mutations_total")
	assert.Contains(t, names, "tendera_gw_mutations_in_flight")
	assert.Contains(t, names, "tendera_gw_batch_size")
	assert.Contains(t, names, "tendera_gw_selections_pruned_total")
}

func TestCacheMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := telemetry.NewCacheMetrics(provider)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordInvalidations(ctx, "expenses", 3)
	metrics.RecordEntriesTotal(ctx, 12)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := collectMetricNames(rm)
	assert.Contains(t, names, "tendera_gw_cache_invalidations_total")
	assert.Contains(t, names, "tendera_gw_cache_entries")
}

func TestCacheMetrics_ZeroCountNotRecorded(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := telemetry.NewCacheMetrics(provider)
	require.NoError(t, err)

	metrics.RecordInvalidations(context.Background(), "expenses", 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.NotContains(t, collectMetricNames(rm), "tendera_gw_cache_invalidations_total",
		"zero invalidations should not create a series")
}

func collectMetricNames(rm metricdata.ResourceMetrics) []string {
	var names []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}
