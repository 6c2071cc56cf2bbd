package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"msaloans/internal/config"
	apierrors "msaloans/internal/errors"
	"msaloans/internal/exporter"
	"msaloans/internal/files"
	"msaloans/internal/infrastructure"
	customMiddleware "msaloans/internal/middleware"
	"msaloans/internal/operations"
	"msaloans/internal/services"
	"msaloans/internal/sources"
	"msaloans/internal/store"
	handlers "msaloans/internal/transport/http"
	"msaloans/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	Store            *store.AggregateStore
	Pipeline         *operations.Pipeline
	AggregateService *services.AggregateService
	HealthService    *services.HealthService
	ErrorHandler     *apierrors.ErrorHandler

	Router *chi.Mux
	Server *http.Server

	pipelineDone chan struct{}
}

// NewApplication loads configuration, initializes logging and wires every
// component. Errors here are startup failures.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging, paths.LogPath(cfg.Logging.FilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("version", contracts.GetVersionString()))
	paths.LogPathResolution(logger)

	return New(ctx, cfg, paths, logger)
}

// New wires the application from an already loaded configuration
func New(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Application, error) {
	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: contracts.Version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	a.initializeServices(ctx)
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices builds the pipeline and the query services
func (a *Application) initializeServices(ctx context.Context) {
	httpClient := &http.Client{}
	manager := files.NewManager(a.Paths, a.Logger)
	outputCache := files.NewCache(manager, a.Paths.OutputCacheDir, a.Metrics, a.Logger)

	deps := operations.Dependencies{
		Census:      sources.NewCensusClient(a.Config.Sources, httpClient, a.Logger),
		CFPB:        sources.NewCFPBClient(a.Config.Sources, httpClient, a.Logger),
		InputCache:  files.NewCache(manager, a.Paths.InputCacheDir, a.Metrics, a.Logger),
		OutputCache: outputCache,
		CSVWriter:   exporter.NewCSVWriter(a.Paths, a.Logger),
		Metrics:     a.Metrics,
		Logger:      a.Logger,
	}
	if a.Config.Output.WriteXLSX {
		deps.XLSXWriter = exporter.NewXLSXWriter(a.Paths, a.Logger)
	}

	// the store is optional: a nil interface value keeps persist skipped
	var pinger services.Pinger
	if a.Config.Store.PostgresURL != "" {
		st, err := store.Open(ctx, a.Config.Store, a.Logger)
		if err != nil {
			a.Logger.ErrorContext(ctx, "aggregate store unavailable, continuing without persistence",
				slog.String("error", err.Error()))
		} else {
			a.Store = st
			deps.Sink = st
			pinger = st
		}
	}

	steps := operations.DefaultSteps(a.Config.Sources.IncomeThreshold, deps)
	a.Pipeline = operations.NewPipeline(steps, a.Logger, a.OTelProviders.Tracer, a.Metrics)
	a.AggregateService = services.NewAggregateService(a.Pipeline, outputCache, a.Logger)
	a.HealthService = services.NewHealthService(a.Pipeline, pinger, a.Logger)
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.ErrorHandler,
			a.Logger,
		).Handler)
	}

	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	aggregateHandler := handlers.NewAggregateHandler(a.AggregateService, a.Logger, a.ErrorHandler)
	aggregateHandler.RegisterRoutes(r)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		aggregateHandler.RegisterAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.setupStaticRoutes(r)
	a.Router = r
}

// setupStaticRoutes serves the public directory at the root
func (a *Application) setupStaticRoutes(r chi.Router) {
	if !config.FileExists(a.Paths.PublicDir) {
		a.Logger.Warn("public directory not found, static files disabled",
			slog.String("path", a.Paths.PublicDir))
		r.NotFound(a.ErrorHandler.NotFound)
		return
	}

	fileServer := http.FileServer(http.Dir(a.Paths.PublicDir))
	r.With(customMiddleware.Compress(5)).Handle("/*", fileServer)
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", customMiddleware.RequestIDHeader},
		ExposedHeaders: []string{customMiddleware.RequestIDHeader},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start binds the listener, serves HTTP in the background and launches the
// pipeline run. Only a listener failure is returned.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.pipelineDone = make(chan struct{})
	go a.runPipeline(ctx)

	return nil
}

// runPipeline executes the aggregation once. Failures leave the queries
// answering with empty results.
func (a *Application) runPipeline(ctx context.Context) {
	defer close(a.pipelineDone)

	result, err := a.Pipeline.Run(ctx)
	if err != nil {
		a.Logger.ErrorContext(ctx, "aggregation pipeline failed, serving empty results",
			slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "aggregates available",
		slog.String("run_id", result.RunID),
		slog.Int("regions", len(result.Aggregates)))
}

// PipelineDone is closed when the startup pipeline run has returned. It is
// nil before Start.
func (a *Application) PipelineDone() <-chan struct{} {
	return a.pipelineDone
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// the persist step may still hold the store
	if done := a.PipelineDone(); done != nil {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			a.Logger.WarnContext(ctx, "pipeline still running at shutdown")
		}
	}

	if a.Store != nil {
		a.Store.Close()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.Background())
}
