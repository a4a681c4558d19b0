package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != PrepareMetricsMeterName {
			continue
		}
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewPrepareMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	metrics, err := NewPrepareMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	// nil metrics record nothing and do not panic
	metrics.RecordPrepare(t.Context(), "dir", time.Second, OutcomeSuccess)
	metrics.RecordLookupFailure(t.Context(), "not_registered")
}

func TestPrepareMetrics_RecordPrepare(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(t.Context()) }()

	metrics, err := NewPrepareMetrics(mp)
	require.NoError(t, err)

	metrics.RecordPrepare(t.Context(), "github", 2*time.Second, OutcomeSuccess)
	metrics.RecordPrepare(t.Context(), "github", 500*time.Millisecond, OutcomeNotModified)
	metrics.RecordPrepare(t.Context(), "url", time.Second, OutcomeError)

	collected := collect(t, reader)
	m, ok := collected["techdocs_prepare_duration_seconds"]
	require.True(t, ok)

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 3)

	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
		protocol, ok := dp.Attributes.Value(attribute.Key("protocol"))
		require.True(t, ok)
		assert.Contains(t, []string{"github", "url"}, protocol.AsString())
	}
	assert.Equal(t, uint64(3), total)
}

func TestPrepareMetrics_RecordLookupFailure(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(t.Context()) }()

	metrics, err := NewPrepareMetrics(mp)
	require.NoError(t, err)

	metrics.RecordLookupFailure(t.Context(), "not_registered")
	metrics.RecordLookupFailure(t.Context(), "not_registered")

	collected := collect(t, reader)

	failures, ok := collected["techdocs_preparer_lookup_failures_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failures.DataPoints, 1)
	assert.Equal(t, int64(2), failures.DataPoints[0].Value)
}
