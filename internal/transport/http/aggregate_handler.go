package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "msaloans/internal/errors"
	"msaloans/internal/files"
	"msaloans/internal/operations"
	"msaloans/internal/services"
	"msaloans/pkg/contracts/domain"
)

// AggregateQuerier is the query surface used by AggregateHandler
type AggregateQuerier interface {
	GetAggregate(ctx context.Context) []*domain.RegionAggregate
	GetAggregateCSV(ctx context.Context) []string
	PipelineStatus(ctx context.Context) operations.Status
	ListArtifacts(ctx context.Context) ([]files.FileInfo, error)
	ArtifactPath(ctx context.Context, name string) (string, error)
}

// AggregateHandler serves the aggregate queries and the written artifacts
type AggregateHandler struct {
	service      AggregateQuerier
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAggregateHandler creates the aggregate handler
func NewAggregateHandler(service AggregateQuerier, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AggregateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "aggregate_handler")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes mounts the public query endpoints at the router root
func (h *AggregateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/aggregateData", h.GetAggregate)
	r.Get("/aggregateCsvData", h.GetAggregateCSV)
}

// RegisterAPIRoutes adds the pipeline and artifact routes to the /api router
func (h *AggregateHandler) RegisterAPIRoutes(r chi.Router) {
	r.Get("/pipeline", h.GetPipelineStatus)
	r.Get("/artifacts", h.ListArtifacts)
	r.Get("/artifacts/{name}", h.DownloadArtifact)
}

// GetAggregate handles GET /aggregateData
func (h *AggregateHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.GetAggregate(r.Context()))
}

// GetAggregateCSV handles GET /aggregateCsvData
func (h *AggregateHandler) GetAggregateCSV(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.GetAggregateCSV(r.Context()))
}

// GetPipelineStatus handles GET /api/pipeline
func (h *AggregateHandler) GetPipelineStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.PipelineStatus(r.Context()))
}

// ListArtifacts handles GET /api/artifacts
func (h *AggregateHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListArtifacts(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   list,
		"count":  len(list),
	})
}

// DownloadArtifact handles GET /api/artifacts/{name}
func (h *AggregateHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	reqID := middleware.GetReqID(r.Context())

	path, err := h.service.ArtifactPath(r.Context(), name)
	if err != nil {
		h.logger.WarnContext(r.Context(), "artifact download refused",
			slog.String("request_id", reqID),
			slog.String("name", name),
			slog.String("error", err.Error()))

		switch {
		case errors.Is(err, services.ErrInvalidArtifact):
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadRequest,
				"VALIDATION_FAILED",
				fmt.Sprintf("Unknown artifact: %s", name),
				map[string]interface{}{"name": name},
			))
		case errors.Is(err, services.ErrPipelineNotReady):
			h.errorHandler.HandleError(w, r, apierrors.ErrPipelineNotReady)
		case errors.Is(err, services.ErrPipelineFailed):
			h.errorHandler.HandleError(w, r, apierrors.PipelineFailed(err))
		case errors.Is(err, services.ErrArtifactNotFound):
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError("artifact "+name))
		default:
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	w.Header().Set("Content-Type", services.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
