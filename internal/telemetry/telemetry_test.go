package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_NoOp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "disabled", cfg: &Config{Enabled: false, Tracing: &TracingConfig{Enabled: true}}},
		{
			name: "enabled without signals",
			cfg: &Config{
				Enabled: true,
				Tracing: &TracingConfig{Enabled: false},
				Metrics: &MetricsConfig{Enabled: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tel, err := New(t.Context(), tt.cfg)
			require.NoError(t, err)

			assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
			assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
			assert.NoError(t, tel.Shutdown(t.Context()))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(t.Context(), &Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling must be between")
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, "unknown", cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())

	var tracing *TracingConfig
	assert.Equal(t, DefaultSampling, tracing.GetSampling())
	assert.Equal(t, 0.25, (&TracingConfig{Sampling: 0.25}).GetSampling())

	custom := &Config{ServiceName: "docs", ServiceVersion: "v1.2.3", Endpoint: "collector:4318"}
	assert.Equal(t, "docs", custom.GetServiceName())
	assert.Equal(t, "v1.2.3", custom.GetServiceVersion())
	assert.Equal(t, "collector:4318", custom.GetEndpoint())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil", cfg: nil},
		{name: "disabled with bad sampling", cfg: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: -1}}},
		{name: "valid sampling", cfg: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 0.5}}},
		{name: "negative sampling", cfg: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}}, wantErr: true},
		{name: "tracing disabled ignores sampling", cfg: &Config{Enabled: true, Tracing: &TracingConfig{Sampling: 7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStartSpan(t *testing.T) {
	t.Parallel()

	t.Run("nil tracer returns span from context", func(t *testing.T) {
		t.Parallel()

		ctx, span := StartSpan(t.Context(), nil, "prepare")
		assert.Equal(t, t.Context(), ctx)
		assert.False(t, span.SpanContext().IsValid())
	})

	t.Run("records errors on sdk spans", func(t *testing.T) {
		t.Parallel()

		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		defer func() { _ = tp.Shutdown(t.Context()) }()

		_, span := StartSpan(t.Context(), tp.Tracer("test"), "prepare")
		RecordError(span, assert.AnError)
		RecordError(span, nil)
		span.End()

		ended := recorder.Ended()
		require.Len(t, ended, 1)
		assert.Equal(t, "prepare", ended[0].Name())
		assert.Equal(t, "operation failed", ended[0].Status().Description)
		require.Len(t, ended[0].Events(), 1)
	})
}
