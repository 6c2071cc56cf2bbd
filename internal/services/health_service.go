package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"msaloans/internal/operations"
	"msaloans/pkg/contracts"
)

// Health status values
const (
	StatusOK       = "ok"
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusDegraded = "degraded"
	StatusDisabled = "disabled"
)

// storePingTimeout bounds the readiness probe's database ping
const storePingTimeout = 2 * time.Second

// ReadinessSource reports whether the pipeline has published a result
type ReadinessSource interface {
	IsReady() bool
	Status() operations.Status
}

// Pinger checks an external dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService provides health check functionality
type HealthService struct {
	pipeline  ReadinessSource
	store     Pinger
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// IsReady reports whether the status allows traffic
func (s HealthStatus) IsReady() bool {
	return s.Status == StatusReady
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. A nil store means no database
// is configured.
func NewHealthService(pipeline ReadinessSource, store Pinger, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		pipeline:  pipeline,
		store:     store,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(_ context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck is ready once the pipeline has published a result. A failing
// store is reported as degraded but does not block readiness.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"pipeline": hs.checkPipeline(),
			"store":    hs.checkStore(ctx),
		},
	}
	if status.Services["pipeline"].Status != StatusReady {
		status.Status = StatusNotReady
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(_ context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":     info.Version,
		"build_time":  info.BuildTime,
		"git_commit":  info.GitCommit,
		"go_version":  info.GoVersion,
		"os":          info.OS,
		"arch":        info.Architecture,
		"data_format": info.DataFormat,
		"uptime":      time.Since(hs.startTime).Seconds(),
		"start_time":  hs.startTime.Format(time.RFC3339),
	}
}

func (hs *HealthService) checkPipeline() ServiceHealth {
	if hs.pipeline == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "pipeline not initialized"}
	}
	if hs.pipeline.IsReady() {
		return ServiceHealth{Status: StatusReady}
	}

	status := hs.pipeline.Status()
	if status.Run == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "pipeline has not started"}
	}
	if status.Run.Status == operations.OperationStatusFailed {
		return ServiceHealth{Status: StatusNotReady, Message: "pipeline failed: " + status.Run.Error}
	}
	return ServiceHealth{Status: StatusNotReady, Message: "pipeline " + string(status.Run.Status)}
}

func (hs *HealthService) checkStore(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: StatusDisabled}
	}

	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	if err := hs.store.Ping(ctx); err != nil {
		hs.logger.WarnContext(ctx, "store ping failed", slog.String("error", err.Error()))
		return ServiceHealth{Status: StatusDegraded, Message: err.Error()}
	}
	return ServiceHealth{Status: StatusReady}
}
