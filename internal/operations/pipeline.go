package operations

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	apperrors "msaloans/internal/errors"
	"msaloans/internal/infrastructure"
	"msaloans/pkg/contracts/domain"
)

// TracerName names the pipeline tracer
const TracerName = "msaloans.pipeline"

// Result is the immutable output of a completed run
type Result struct {
	RunID          string                    `json:"run_id"`
	CompletedAt    time.Time                 `json:"completed_at"`
	Regions        []domain.Region           `json:"regions"`
	Aggregates     []*domain.RegionAggregate `json:"aggregates"`
	CSVLines       []string                  `json:"csv_lines"`
	RaceCategories []string                  `json:"race_categories"`
	RecordCount    int                       `json:"record_count"`
	Artifacts      map[string]string         `json:"artifacts"`
}

// Status is the JSON view served by /api/pipeline
type Status struct {
	Ready bool               `json:"ready"`
	Run   *OperationSnapshot `json:"run,omitempty"`
}

// Pipeline runs the step list and publishes its Result. A successful run is
// final: later Run calls return the published Result.
type Pipeline struct {
	steps   []Step
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics

	group   singleflight.Group
	result  atomic.Pointer[Result]
	current atomic.Pointer[OperationState]

	ready     chan struct{}
	readyOnce sync.Once
}

// NewPipeline creates a pipeline over steps. A nil tracer uses the global
// provider.
func NewPipeline(steps []Step, logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.BusinessMetrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &Pipeline{
		steps:   steps,
		logger:  logger.With(slog.String("component", "pipeline")),
		tracer:  tracer,
		metrics: metrics,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once a Result has been published
func (p *Pipeline) Ready() <-chan struct{} {
	return p.ready
}

// IsReady reports whether a Result has been published
func (p *Pipeline) IsReady() bool {
	return p.result.Load() != nil
}

// Result returns the published Result, or nil before the first success
func (p *Pipeline) Result() *Result {
	return p.result.Load()
}

// Status returns the state of the latest run
func (p *Pipeline) Status() Status {
	status := Status{Ready: p.IsReady()}
	if state := p.current.Load(); state != nil {
		snap := state.Snapshot()
		status.Run = &snap
	}
	return status
}

// Run executes the pipeline unless it already succeeded. Concurrent callers
// share one execution.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if r := p.result.Load(); r != nil {
		return r, nil
	}

	v, err, _ := p.group.Do("run", func() (interface{}, error) {
		if r := p.result.Load(); r != nil {
			return r, nil
		}
		return p.execute(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (p *Pipeline) execute(ctx context.Context) (*Result, error) {
	state := NewOperationState(uuid.NewString(), p.steps)
	p.current.Store(state)

	ctx = infrastructure.WithTraceID(ctx, state.ID)
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.Int("run.steps", len(p.steps)),
		),
	)
	defer span.End()

	state.Start()
	p.logger.InfoContext(ctx, "pipeline_started",
		slog.String("operation_id", state.ID),
		slog.Int("step_count", len(p.steps)))

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(ctx, state, NewCancellationError(step.ID(), err))
		}

		p.logger.InfoContext(ctx, "executing_step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(p.steps)))

		if err := p.executeStep(ctx, state, step); err != nil {
			if step.Optional() {
				p.logger.WarnContext(ctx, "optional_step_failed",
					slog.String("operation_id", state.ID),
					slog.String("step", step.ID()),
					slog.String("error", err.Error()))
				continue
			}
			return nil, p.fail(ctx, state, err)
		}
	}

	result := p.buildResult(state)
	p.result.Store(result)
	state.Complete()
	p.readyOnce.Do(func() { close(p.ready) })

	infrastructure.RecordRunMetrics(ctx, p.metrics, state.Duration(), nil)
	span.SetStatus(codes.Ok, "pipeline completed")
	p.logger.InfoContext(ctx, "pipeline_completed",
		slog.String("operation_id", state.ID),
		slog.Int("regions", len(result.Aggregates)),
		slog.Int("records", result.RecordCount),
		slog.Duration("duration", state.Duration()))

	return result, nil
}

// executeStep runs one step inside its own span and records its outcome
func (p *Pipeline) executeStep(ctx context.Context, state *OperationState, step Step) error {
	st := state.GetStep(step.ID())

	ctx, span := p.tracer.Start(ctx, "pipeline.step."+step.ID(),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("step.id", step.ID()),
		),
	)
	defer span.End()

	st.Start()
	start := time.Now()
	err := step.Execute(ctx, state)
	duration := time.Since(start)

	if reason, skipped := skipReason(err); skipped {
		st.Skip(reason)
		p.logger.InfoContext(ctx, "step_skipped",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.String("reason", reason))
		return nil
	}

	infrastructure.RecordStepMetrics(ctx, p.metrics, state.ID, step.ID(), duration, err == nil)

	if err != nil {
		st.Fail(err)
		infrastructure.RecordError(ctx, err)
		p.logger.ErrorContext(ctx, "step_failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error_class", string(apperrors.TypeOf(err))),
			slog.String("error", err.Error()))
		return WrapError(err, step.ID(), "step execution failed")
	}

	st.Complete()
	span.SetStatus(codes.Ok, "")
	p.logger.InfoContext(ctx, "step_completed",
		slog.String("operation_id", state.ID),
		slog.String("step", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

// fail records a failed run. Queries keep answering with empty results.
func (p *Pipeline) fail(ctx context.Context, state *OperationState, err error) error {
	state.SkipRemaining("pipeline failed")
	state.Fail(err)
	infrastructure.RecordError(ctx, err)
	infrastructure.RecordRunMetrics(ctx, p.metrics, state.Duration(), err)
	p.logger.ErrorContext(ctx, "pipeline_failed",
		slog.String("operation_id", state.ID),
		slog.String("error_type", string(GetErrorType(err))),
		slog.String("error", err.Error()))
	return err
}

func (p *Pipeline) buildResult(state *OperationState) *Result {
	data := state.Data
	result := &Result{
		RunID:          state.ID,
		CompletedAt:    time.Now().UTC(),
		Regions:        []domain.Region{},
		Aggregates:     []*domain.RegionAggregate{},
		CSVLines:       []string{},
		RaceCategories: []string{},
		Artifacts:      make(map[string]string, len(data.Artifacts)),
	}

	if data.Selection != nil {
		result.Regions = append(result.Regions, data.Selection.Regions...)
	}
	if data.Aggregates != nil {
		result.Aggregates = orderedAggregates(data.Aggregates)
		result.RaceCategories = append(result.RaceCategories, data.Aggregates.RaceCategories...)
		result.RecordCount = data.Aggregates.RecordCount
	}
	result.CSVLines = append(result.CSVLines, data.CSVLines...)
	for k, v := range data.Artifacts {
		result.Artifacts[k] = v
	}
	return result
}
