package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"msaloans/internal/config"
	"msaloans/internal/dataprocessing"
	"msaloans/internal/exporter"
	"msaloans/internal/infrastructure"
	"msaloans/pkg/contracts/domain"
)

// Step IDs
const (
	StepFetchRegions   = "fetch_regions"
	StepFilterRegions  = "filter_regions"
	StepLoadLoans      = "load_loans"
	StepAggregate      = "aggregate"
	StepRender         = "render"
	StepWriteArtifacts = "write_artifacts"
	StepPersist        = "persist"
)

// skipError tells the pipeline a step had nothing to do
type skipError struct {
	reason string
}

func (e *skipError) Error() string { return "skipped: " + e.reason }

// SkipStep returns an error that marks the running step as skipped
func SkipStep(reason string) error {
	return &skipError{reason: reason}
}

func skipReason(err error) (string, bool) {
	var s *skipError
	if errors.As(err, &s) {
		return s.reason, true
	}
	return "", false
}

// FetchRegionsStep loads the census income payload, from cache when possible
type FetchRegionsStep struct {
	BaseStage
	cache  DatasetCache
	source RegionSource
}

// NewFetchRegionsStep creates the census fetch step
func NewFetchRegionsStep(cache DatasetCache, source RegionSource) *FetchRegionsStep {
	return &FetchRegionsStep{
		BaseStage: NewBaseStage(StepFetchRegions, "Fetch Region Income", false),
		cache:     cache,
		source:    source,
	}
}

// Execute implements Step
func (s *FetchRegionsStep) Execute(ctx context.Context, state *OperationState) error {
	data, err := s.cache.Load(ctx, config.RegionIncomeFile, s.source.FetchRegionIncome)
	if err != nil {
		return fmt.Errorf("load region income: %w", err)
	}
	state.Data.CensusPayload = data
	state.GetStep(s.ID()).SetMetadata("size_bytes", len(data))
	return nil
}

// FilterRegionsStep keeps regions under the income threshold
type FilterRegionsStep struct {
	BaseStage
	threshold float64
}

// NewFilterRegionsStep creates the region filter step
func NewFilterRegionsStep(threshold float64) *FilterRegionsStep {
	return &FilterRegionsStep{
		BaseStage: NewBaseStage(StepFilterRegions, "Filter Regions", false),
		threshold: threshold,
	}
}

// Execute implements Step
func (s *FilterRegionsStep) Execute(_ context.Context, state *OperationState) error {
	if state.Data.CensusPayload == nil {
		return NewInvalidStateError(s.ID(), "census payload")
	}

	sel, err := dataprocessing.SelectRegions(state.Data.CensusPayload, s.threshold)
	if err != nil {
		return err
	}
	state.Data.Selection = &sel
	state.Data.CensusPayload = nil

	st := state.GetStep(s.ID())
	st.SetMetadata("regions_selected", len(sel.Regions))
	st.SetMetadata("income_threshold", s.threshold)
	return nil
}

// LoadLoansStep produces normalized loan records. The derived cache is
// tried first; otherwise the raw export is loaded (cache or fetch), parsed
// and written back to the derived cache.
type LoadLoansStep struct {
	BaseStage
	inputCache  DatasetCache
	outputCache DatasetCache
	source      LoanSource
	logger      *slog.Logger
}

// NewLoadLoansStep creates the loan loading step
func NewLoadLoansStep(inputCache, outputCache DatasetCache, source LoanSource, logger *slog.Logger) *LoadLoansStep {
	return &LoadLoansStep{
		BaseStage:   NewBaseStage(StepLoadLoans, "Load Loan Records", false),
		inputCache:  inputCache,
		outputCache: outputCache,
		source:      source,
		logger:      logger.With(slog.String("step", StepLoadLoans)),
	}
}

// Execute implements Step
func (s *LoadLoansStep) Execute(ctx context.Context, state *OperationState) error {
	if state.Data.Selection == nil {
		return NewInvalidStateError(s.ID(), "region selection")
	}
	st := state.GetStep(s.ID())

	if data, ok := s.outputCache.Get(ctx, config.NormalizedLoanFile); ok {
		records, err := dataprocessing.DecodeLoanRecords(data)
		if err == nil {
			state.Data.Records = records
			st.SetMetadata("source", "derived_cache")
			st.SetMetadata("records", len(records))
			return nil
		}
		s.logger.WarnContext(ctx, "derived cache unreadable, rebuilding",
			slog.String("error", err.Error()))
	}

	ids := state.Data.Selection.IDs()
	if len(ids) == 0 {
		state.Data.Records = []domain.LoanRecord{}
		st.SetMessage("no regions under the income threshold")
		return nil
	}

	raw, err := s.inputCache.Load(ctx, config.LoanDataFile, func(ctx context.Context) ([]byte, error) {
		return s.source.FetchLoans(ctx, ids)
	})
	if err != nil {
		return fmt.Errorf("load loan records: %w", err)
	}

	records, err := dataprocessing.ReadLoanRecords(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	state.Data.Records = records
	st.SetMetadata("source", "raw_export")
	st.SetMetadata("records", len(records))

	encoded, err := dataprocessing.EncodeLoanRecords(records)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode derived cache", slog.String("error", err.Error()))
		return nil
	}
	// a missed derived cache only costs a re-parse next run; Put logs it
	_ = s.outputCache.Put(ctx, config.NormalizedLoanFile, encoded)
	return nil
}

// AggregateStep folds loan records into per-region statistics
type AggregateStep struct {
	BaseStage
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewAggregateStep creates the aggregation step
func NewAggregateStep(metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AggregateStep {
	return &AggregateStep{
		BaseStage: NewBaseStage(StepAggregate, "Aggregate Loans", false),
		metrics:   metrics,
		logger:    logger,
	}
}

// Execute implements Step
func (s *AggregateStep) Execute(ctx context.Context, state *OperationState) error {
	if state.Data.Selection == nil || state.Data.Records == nil {
		return NewInvalidStateError(s.ID(), "loan records")
	}

	result := dataprocessing.Aggregate(state.Data.Records, state.Data.Selection.NameByID, s.logger)
	state.Data.Aggregates = result
	state.Data.Records = nil

	st := state.GetStep(s.ID())
	st.SetMetadata("records", result.RecordCount)
	st.SetMetadata("regions", len(result.Aggregates))
	st.SetMetadata("race_categories", len(result.RaceCategories))

	if s.metrics != nil {
		s.metrics.RecordsFoldedTotal.Add(ctx, int64(result.RecordCount))
		s.metrics.RegionsAggregated.Record(ctx, int64(len(result.Aggregates)))
		for _, f := range domain.NumericFields {
			if n := result.Excluded[f]; n > 0 {
				s.metrics.ValuesExcludedTotal.Add(ctx, int64(n),
					metric.WithAttributes(attribute.String("field", f.Column())))
			}
		}
	}
	return nil
}

// RenderStep freezes the output table and renders the CSV lines
type RenderStep struct {
	BaseStage
}

// NewRenderStep creates the render step
func NewRenderStep() *RenderStep {
	return &RenderStep{BaseStage: NewBaseStage(StepRender, "Render Table", false)}
}

// Execute implements Step
func (s *RenderStep) Execute(_ context.Context, state *OperationState) error {
	if state.Data.Selection == nil || state.Data.Aggregates == nil {
		return NewInvalidStateError(s.ID(), "aggregates")
	}

	table := exporter.BuildTable(state.Data.Selection.Regions, state.Data.Aggregates)
	state.Data.Table = table
	state.Data.CSVLines = exporter.RenderCSV(table)

	st := state.GetStep(s.ID())
	st.SetMetadata("rows", len(table.Rows))
	st.SetMetadata("columns", len(table.Header()))
	return nil
}

// WriteArtifactsStep writes the CSV, and the workbook when enabled, to the
// output cache.
type WriteArtifactsStep struct {
	BaseStage
	csv  LinesWriter
	xlsx TableWriter
}

// NewWriteArtifactsStep creates the artifact step. A nil xlsx writer
// disables the workbook.
func NewWriteArtifactsStep(csv LinesWriter, xlsx TableWriter) *WriteArtifactsStep {
	return &WriteArtifactsStep{
		BaseStage: NewBaseStage(StepWriteArtifacts, "Write Artifacts", true),
		csv:       csv,
		xlsx:      xlsx,
	}
}

// Execute implements Step
func (s *WriteArtifactsStep) Execute(_ context.Context, state *OperationState) error {
	if state.Data.Table == nil {
		return NewInvalidStateError(s.ID(), "rendered table")
	}

	path, err := s.csv.WriteLines(config.AggregateCSVFile, state.Data.CSVLines, exporter.WriteOptions{})
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	state.Data.Artifacts["csv"] = path

	if s.xlsx == nil {
		return nil
	}
	path, err = s.xlsx.Write(config.AggregateXLSXFile, state.Data.Table)
	if err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	state.Data.Artifacts["xlsx"] = path
	return nil
}

// PersistStep upserts the aggregates into the configured sink
type PersistStep struct {
	BaseStage
	sink AggregateSink
}

// NewPersistStep creates the persistence step. A nil sink skips it.
func NewPersistStep(sink AggregateSink) *PersistStep {
	return &PersistStep{
		BaseStage: NewBaseStage(StepPersist, "Persist Aggregates", true),
		sink:      sink,
	}
}

// Execute implements Step
func (s *PersistStep) Execute(ctx context.Context, state *OperationState) error {
	if s.sink == nil {
		return SkipStep("no aggregate store configured")
	}
	if state.Data.Aggregates == nil {
		return NewInvalidStateError(s.ID(), "aggregates")
	}

	aggs := orderedAggregates(state.Data.Aggregates)
	if err := s.sink.SaveAggregates(ctx, state.ID, aggs); err != nil {
		return err
	}
	state.GetStep(s.ID()).SetMetadata("rows", len(aggs))
	return nil
}

// orderedAggregates lists aggregates by region id
func orderedAggregates(result *dataprocessing.AggregateResult) []*domain.RegionAggregate {
	ids := result.RegionIDs()
	out := make([]*domain.RegionAggregate, 0, len(ids))
	for _, id := range ids {
		out = append(out, result.Aggregates[id])
	}
	return out
}

// Dependencies wires the default step list
type Dependencies struct {
	Census      RegionSource
	CFPB        LoanSource
	InputCache  DatasetCache
	OutputCache DatasetCache
	CSVWriter   LinesWriter
	XLSXWriter  TableWriter
	Sink        AggregateSink
	Metrics     *infrastructure.BusinessMetrics
	Logger      *slog.Logger
}

// DefaultSteps returns the full pipeline in execution order
func DefaultSteps(incomeThreshold float64, deps Dependencies) []Step {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return []Step{
		NewFetchRegionsStep(deps.InputCache, deps.Census),
		NewFilterRegionsStep(incomeThreshold),
		NewLoadLoansStep(deps.InputCache, deps.OutputCache, deps.CFPB, logger),
		NewAggregateStep(deps.Metrics, logger),
		NewRenderStep(),
		NewWriteArtifactsStep(deps.CSVWriter, deps.XLSXWriter),
		NewPersistStep(deps.Sink),
	}
}
