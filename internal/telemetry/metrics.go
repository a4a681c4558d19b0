package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PrepareMetricsMeterName is the name used for the prepare metrics meter
const PrepareMetricsMeterName = "github.com/stacklok/techdocs-preparer/preparers"

// Outcome labels of a prepare run
const (
	OutcomeSuccess     = "success"
	OutcomeNotModified = "not_modified"
	OutcomeError       = "error"
)

// PrepareMetrics holds the instruments for prepare runs
type PrepareMetrics struct {
	prepareDuration metric.Float64Histogram
	lookupFailures  metric.Int64Counter
}

// NewPrepareMetrics creates the prepare instruments on provider.
// A nil provider yields nil metrics, which record nothing.
func NewPrepareMetrics(provider metric.MeterProvider) (*PrepareMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PrepareMetricsMeterName)

	prepareDuration, err := meter.Float64Histogram(
		"techdocs_prepare_duration_seconds",
		metric.WithDescription("Duration of prepare runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	lookupFailures, err := meter.Int64Counter(
		"techdocs_preparer_lookup_failures_total",
		metric.WithDescription("Entities for which no preparer could be selected"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	return &PrepareMetrics{
		prepareDuration: prepareDuration,
		lookupFailures:  lookupFailures,
	}, nil
}

// RecordPrepare records the duration and outcome of a prepare run
func (m *PrepareMetrics) RecordPrepare(ctx context.Context, protocol string, duration time.Duration, outcome string) {
	if m == nil || m.prepareDuration == nil {
		return
	}

	m.prepareDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("protocol", protocol),
		attribute.String("outcome", outcome),
	))
}

// RecordLookupFailure counts an entity the registry could not serve
func (m *PrepareMetrics) RecordLookupFailure(ctx context.Context, reason string) {
	if m == nil || m.lookupFailures == nil {
		return
	}

	m.lookupFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
