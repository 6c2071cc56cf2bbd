package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(OTelConfig{
		ServiceName:    "msaloans-test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
	}, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OTelConfig
		wantErr bool
	}{
		{"stdout tracing", OTelConfig{ServiceName: "svc", TraceExporter: "stdout", MetricExporter: "none"}, false},
		{"everything disabled", OTelConfig{ServiceName: "svc", TraceExporter: "none", MetricExporter: "none"}, false},
		{"unknown trace exporter", OTelConfig{ServiceName: "svc", TraceExporter: "zipkin", MetricExporter: "none"}, true},
		{"unknown metric exporter", OTelConfig{ServiceName: "svc", TraceExporter: "none", MetricExporter: "statsd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestBusinessMetrics(t *testing.T) {
	providers, err := InitializeOTel(OTelConfig{
		ServiceName:    "msaloans-test",
		TraceExporter:  "none",
		MetricExporter: "none",
	}, discardLogger())
	require.NoError(t, err)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordStepMetrics(ctx, metrics, "run-1", "fold", 10*time.Millisecond, true)
		RecordRunMetrics(ctx, metrics, time.Second, errors.New("boom"))
		RecordStepMetrics(ctx, nil, "run-1", "fold", time.Millisecond, false)
		RecordRunMetrics(ctx, nil, time.Second, nil)
	})
}

func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(OTelConfig{
		ServiceName:    "msaloans-test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
	}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordRunMetrics(context.Background(), metrics, 2*time.Second, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pipeline_runs_total")
}

func TestRecordErrorOnSpan(t *testing.T) {
	providers, err := InitializeOTel(OTelConfig{
		ServiceName:    "msaloans-test",
		TraceExporter:  "stdout",
		MetricExporter: "none",
	}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "fetch")
	assert.NotPanics(t, func() { RecordError(ctx, errors.New("upstream down")) })
	span.End()

	assert.NotPanics(t, func() { RecordError(context.Background(), errors.New("no span")) })
}
