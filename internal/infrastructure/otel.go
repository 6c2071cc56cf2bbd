package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceVersion = "1.0.0"
	MeterName      = "msaloans"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers. Tracer and Meter are
// always usable; they fall back to no-op implementations when the matching
// exporter is disabled.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel initializes tracing and metrics according to cfg
func InitializeOTel(cfg OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = ServiceVersion
	}
	if cfg.SampleRatio == 0 {
		cfg.SampleRatio = 1.0
	}
	if cfg.Environment == "" {
		cfg.Environment = os.Getenv("ENVIRONMENT")
		if cfg.Environment == "" {
			cfg.Environment = "development"
		}
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.String("service", cfg.ServiceName),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	return providers, nil
}

func initializeTracing(ctx context.Context, cfg OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetTracerProvider(tp)

		providers.Logger.DebugContext(ctx, "Tracing initialized",
			slog.String("exporter", cfg.TraceExporter),
			slog.Float64("sample_ratio", cfg.SampleRatio))
	case "none", "":
		providers.Tracer = otel.Tracer(MeterName)
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	return nil
}

func initializeMetrics(ctx context.Context, cfg OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

		providers.Logger.DebugContext(ctx, "Metrics initialized", slog.String("exporter", cfg.MetricExporter))
	case "none", "":
		providers.Meter = noop.NewMeterProvider().Meter(MeterName)
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}
	return nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Pipeline metrics
	PipelineRunsTotal    metric.Int64Counter
	PipelineRunDuration  metric.Float64Histogram
	PipelineStepsTotal   metric.Int64Counter
	PipelineStepDuration metric.Float64Histogram

	// Data metrics
	SourceFetchesTotal  metric.Int64Counter
	CacheLookupsTotal   metric.Int64Counter
	RecordsFoldedTotal  metric.Int64Counter
	RegionsAggregated   metric.Int64Gauge
	ValuesExcludedTotal metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var (
		m   BusinessMetrics
		err error
	)

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of active HTTP requests")); err != nil {
		return nil, err
	}

	if m.PipelineRunsTotal, err = meter.Int64Counter("pipeline_runs_total",
		metric.WithDescription("Total number of aggregation pipeline runs")); err != nil {
		return nil, err
	}
	if m.PipelineRunDuration, err = meter.Float64Histogram("pipeline_run_duration_seconds",
		metric.WithDescription("Aggregation pipeline duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.PipelineStepsTotal, err = meter.Int64Counter("pipeline_steps_total",
		metric.WithDescription("Total number of pipeline steps executed")); err != nil {
		return nil, err
	}
	if m.PipelineStepDuration, err = meter.Float64Histogram("pipeline_step_duration_seconds",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	if m.SourceFetchesTotal, err = meter.Int64Counter("source_fetches_total",
		metric.WithDescription("Upstream dataset fetches by dataset and outcome")); err != nil {
		return nil, err
	}
	if m.CacheLookupsTotal, err = meter.Int64Counter("cache_lookups_total",
		metric.WithDescription("Dataset cache lookups by dataset and result")); err != nil {
		return nil, err
	}
	if m.RecordsFoldedTotal, err = meter.Int64Counter("loan_records_folded_total",
		metric.WithDescription("Loan records folded into region aggregates")); err != nil {
		return nil, err
	}
	if m.RegionsAggregated, err = meter.Int64Gauge("regions_aggregated",
		metric.WithDescription("Regions present in the latest aggregate snapshot")); err != nil {
		return nil, err
	}
	if m.ValuesExcludedTotal, err = meter.Int64Counter("loan_values_excluded_total",
		metric.WithDescription("Non-numeric loan field values excluded from averages")); err != nil {
		return nil, err
	}

	return &m, nil
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// RecordStepMetrics records the outcome and duration of a pipeline step
func RecordStepMetrics(ctx context.Context, metrics *BusinessMetrics, runID, stepID string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("step.id", stepID),
		attribute.String("status", status),
	)

	metrics.PipelineStepsTotal.Add(ctx, 1, attrs)
	metrics.PipelineStepDuration.Record(ctx, duration.Seconds(), attrs)

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("pipeline.step_recorded",
			trace.WithAttributes(
				attribute.String("run.id", runID),
				attribute.String("step.id", stepID),
				attribute.Bool("success", success),
			),
		)
	}
}

// RecordRunMetrics records the outcome and duration of a whole pipeline run
func RecordRunMetrics(ctx context.Context, metrics *BusinessMetrics, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))

	metrics.PipelineRunsTotal.Add(ctx, 1, attrs)
	metrics.PipelineRunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCacheLookup counts a dataset cache lookup as a hit or a miss
func RecordCacheLookup(ctx context.Context, metrics *BusinessMetrics, dataset string, hit bool) {
	if metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("result", result),
	))
}

// RecordSourceFetch counts an upstream fetch by dataset and outcome
func RecordSourceFetch(ctx context.Context, metrics *BusinessMetrics, dataset string, err error) {
	if metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.SourceFetchesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("status", status),
	))
}
