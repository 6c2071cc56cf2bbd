package services

import (
	"context"
	"fmt"
	"log/slog"

	"msaloans/internal/config"
	"msaloans/internal/files"
	"msaloans/internal/operations"
	"msaloans/pkg/contracts/domain"
)

// ResultSource exposes the pipeline's published result
type ResultSource interface {
	Result() *operations.Result
	Status() operations.Status
}

// ArtifactStore lists the files written to the output cache
type ArtifactStore interface {
	Files() ([]files.FileInfo, error)
}

// downloadable lists the artifacts that may be served for download
var downloadable = map[string]string{
	config.AggregateCSVFile:  "text/csv; charset=utf-8",
	config.AggregateXLSXFile: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentType returns the media type of a downloadable artifact
func ContentType(name string) string {
	return downloadable[name]
}

// AggregateService answers aggregate queries from the pipeline result
type AggregateService struct {
	pipeline  ResultSource
	artifacts ArtifactStore
	logger    *slog.Logger
}

// NewAggregateService creates the query service. A nil artifact store
// disables artifact listing.
func NewAggregateService(pipeline ResultSource, artifacts ArtifactStore, logger *slog.Logger) *AggregateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateService{
		pipeline:  pipeline,
		artifacts: artifacts,
		logger:    logger.With(slog.String("component", "aggregate_service")),
	}
}

// GetAggregate returns the finalized aggregates ordered by region id. The
// list is empty until the pipeline has completed.
func (s *AggregateService) GetAggregate(ctx context.Context) []*domain.RegionAggregate {
	result := s.pipeline.Result()
	if result == nil {
		s.logger.DebugContext(ctx, "aggregate queried before pipeline completion")
		return []*domain.RegionAggregate{}
	}
	return result.Aggregates
}

// GetAggregateCSV returns the rendered CSV lines, header first. The list is
// empty until the pipeline has completed.
func (s *AggregateService) GetAggregateCSV(ctx context.Context) []string {
	result := s.pipeline.Result()
	if result == nil {
		s.logger.DebugContext(ctx, "csv queried before pipeline completion")
		return []string{}
	}
	return result.CSVLines
}

// PipelineStatus reports readiness and the latest run's step states
func (s *AggregateService) PipelineStatus(_ context.Context) operations.Status {
	return s.pipeline.Status()
}

// ListArtifacts returns the downloadable files present in the output cache
func (s *AggregateService) ListArtifacts(ctx context.Context) ([]files.FileInfo, error) {
	out := []files.FileInfo{}
	if s.artifacts == nil {
		return out, nil
	}

	all, err := s.artifacts.Files()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list artifacts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	for _, f := range all {
		if _, ok := downloadable[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// requireResult reports why no result is published. Files left in the
// output cache by an earlier process are not served until this run succeeds.
func (s *AggregateService) requireResult() error {
	if s.pipeline.Result() != nil {
		return nil
	}
	if run := s.pipeline.Status().Run; run != nil && run.Status == operations.OperationStatusFailed {
		return fmt.Errorf("%w: %s", ErrPipelineFailed, run.Error)
	}
	return ErrPipelineNotReady
}

// ArtifactPath resolves a downloadable artifact to its file path
func (s *AggregateService) ArtifactPath(ctx context.Context, name string) (string, error) {
	if _, ok := downloadable[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidArtifact, name)
	}
	if err := s.requireResult(); err != nil {
		return "", err
	}

	list, err := s.ListArtifacts(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range list {
		if f.Name == name {
			return f.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
}
