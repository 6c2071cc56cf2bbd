package dataprocessing

import (
	"log/slog"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"msaloans/pkg/contracts/domain"
)

// incomeScale converts HMDA income, reported in thousands, to dollars
const incomeScale = 1000

// regionAccumulator holds the running state of one region during the fold
type regionAccumulator struct {
	loanCount int
	sums      [domain.NumericFieldCount]float64
	excluded  [domain.NumericFieldCount]int

	tracts     map[string]float64
	tractOrder []string

	raceCounts map[string]int
}

func newRegionAccumulator() *regionAccumulator {
	return &regionAccumulator{
		tracts:     make(map[string]float64),
		raceCounts: make(map[string]int),
	}
}

// AggregateResult is the finalized output of an Aggregator
type AggregateResult struct {
	// Aggregates maps region id to its finalized statistics
	Aggregates map[string]*domain.RegionAggregate
	// RaceCategories is the frozen, first-seen ordered race set
	RaceCategories []string
	// RecordCount is the number of records folded
	RecordCount int
	// Excluded counts non-numeric values per field across all regions
	Excluded [domain.NumericFieldCount]int
}

// RegionIDs returns the aggregated region ids ordered numerically when both
// ids are numbers, lexically otherwise.
func (r *AggregateResult) RegionIDs() []string {
	ids := make([]string, 0, len(r.Aggregates))
	for id := range r.Aggregates {
		ids = append(ids, id)
	}
	SortRegionIDs(ids)
	return ids
}

// SortRegionIDs orders ids numerically when both are integers, lexically otherwise
func SortRegionIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := strconv.ParseUint(ids[i], 10, 64)
		b, errB := strconv.ParseUint(ids[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}

// Aggregator folds LoanRecords into per-region running sums and turns them
// into averages on Finalize. It is not safe for concurrent use.
type Aggregator struct {
	logger  *slog.Logger
	regions map[string]*regionAccumulator

	races    []string
	raceSeen map[string]struct{}

	folded   int
	excluded [domain.NumericFieldCount]int
}

// NewAggregator creates an empty aggregator
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		logger:   logger.With(slog.String("component", "aggregator")),
		regions:  make(map[string]*regionAccumulator),
		raceSeen: make(map[string]struct{}),
	}
}

// Fold adds one record to its region's running state. Each numeric field
// either contributes to the field's sum or to its excluded count, never both.
func (a *Aggregator) Fold(rec domain.LoanRecord) {
	acc, ok := a.regions[rec.RegionID]
	if !ok {
		acc = newRegionAccumulator()
		a.regions[rec.RegionID] = acc
	}

	acc.loanCount++
	a.folded++

	acc.raceCounts[rec.RaceCategory]++
	if _, seen := a.raceSeen[rec.RaceCategory]; !seen {
		a.raceSeen[rec.RaceCategory] = struct{}{}
		a.races = append(a.races, rec.RaceCategory)
	}

	for _, f := range domain.NumericFields {
		if v, ok := ParseNumber(rec.Value(f)); ok {
			acc.sums[f] += v
		} else {
			acc.excluded[f]++
			a.excluded[f]++
		}
	}

	// one value per tract, last write wins
	minority, ok := ParseNumber(rec.TractMinorityPopulationPercent)
	if !ok {
		minority = 0
	}
	if _, seen := acc.tracts[rec.CensusTract]; !seen {
		acc.tractOrder = append(acc.tractOrder, rec.CensusTract)
	}
	acc.tracts[rec.CensusTract] = minority
}

// FoldAll folds records in order
func (a *Aggregator) FoldAll(records []domain.LoanRecord) {
	for i := range records {
		a.Fold(records[i])
	}
}

// Finalize derives every region's averages. nameByID supplies region names;
// regions without a name get an empty one. The aggregator must not be folded
// into after Finalize.
func (a *Aggregator) Finalize(nameByID map[string]string) *AggregateResult {
	result := &AggregateResult{
		Aggregates:     make(map[string]*domain.RegionAggregate, len(a.regions)),
		RaceCategories: append([]string(nil), a.races...),
		RecordCount:    a.folded,
		Excluded:       a.excluded,
	}
	if result.RaceCategories == nil {
		result.RaceCategories = []string{}
	}

	for id, acc := range a.regions {
		agg := &domain.RegionAggregate{
			RegionID:   id,
			RegionName: nameByID[id],
			LoanCount:  acc.loanCount,
			Tracts:     make(map[string]float64, len(acc.tracts)),
			RaceCounts: make(map[string]int, len(acc.raceCounts)),
		}
		for tract, v := range acc.tracts {
			agg.Tracts[tract] = v
		}
		for race, n := range acc.raceCounts {
			agg.RaceCounts[race] = n
		}

		for _, f := range domain.NumericFields {
			sum := acc.sums[f]
			if f == domain.FieldIncome {
				sum *= incomeScale
			}

			denominator := acc.loanCount - acc.excluded[f]
			if denominator == 0 {
				agg.SetAverage(f, 0)
				agg.ZeroDenominatorFields = append(agg.ZeroDenominatorFields, f.JSONKey())
				continue
			}
			agg.SetAverage(f, Round2(sum/float64(denominator)))
		}

		agg.AvgMinorityPopulation = minorityAverage(acc)

		if len(agg.ZeroDenominatorFields) > 0 {
			a.logger.Warn("region has fields with no numeric values",
				slog.String("region_id", id),
				slog.Any("fields", agg.ZeroDenominatorFields),
				slog.Int("loan_count", acc.loanCount))
		}

		result.Aggregates[id] = agg
	}

	a.logger.Debug("aggregation finalized",
		slog.Int("regions", len(result.Aggregates)),
		slog.Int("records", a.folded),
		slog.Int("race_categories", len(result.RaceCategories)))

	return result
}

// minorityAverage averages one value per distinct tract, summed in tract
// first-seen order so the result is stable across runs.
func minorityAverage(acc *regionAccumulator) float64 {
	if len(acc.tractOrder) == 0 {
		return 0
	}
	values := make([]float64, len(acc.tractOrder))
	for i, tract := range acc.tractOrder {
		values[i] = acc.tracts[tract]
	}
	return Round2(floats.Sum(values) / float64(len(values)))
}

// Aggregate folds records and finalizes them in one call
func Aggregate(records []domain.LoanRecord, nameByID map[string]string, logger *slog.Logger) *AggregateResult {
	agg := NewAggregator(logger)
	agg.FoldAll(records)
	return agg.Finalize(nameByID)
}
