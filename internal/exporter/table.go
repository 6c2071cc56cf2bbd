package exporter

import (
	"msaloans/internal/dataprocessing"
	"msaloans/pkg/contracts/domain"
)

// Fixed leading columns of the aggregate table
const (
	HeaderRegionName = "MSA Name"
	HeaderRegionID   = "MSA ID"
	HeaderLoanCount  = "Number of Loans"
	HeaderMinority   = "Avg Minority Population (percent)"
)

// FixedColumnCount is the number of columns before the race columns
const FixedColumnCount = 4 + domain.NumericFieldCount

// Row is one region in the aggregate table
type Row struct {
	RegionName string
	RegionID   string
	LoanCount  int
	Averages   [domain.NumericFieldCount]float64
	Minority   float64
	// RaceCounts is aligned with Table.RaceCategories
	RaceCounts []int
}

// Table is the renderer-neutral form of an aggregation run. Its column set
// is frozen when the table is built.
type Table struct {
	RaceCategories []string
	Rows           []Row
}

// Header returns the fixed columns followed by one column per race category
func (t *Table) Header() []string {
	header := make([]string, 0, FixedColumnCount+len(t.RaceCategories))
	header = append(header, HeaderRegionName, HeaderRegionID, HeaderLoanCount)
	for _, f := range domain.NumericFields {
		header = append(header, f.Header())
	}
	header = append(header, HeaderMinority)
	return append(header, t.RaceCategories...)
}

// BuildTable lays out one row per selected region that has an aggregate, in
// selection order. Selected regions without loans are omitted.
func BuildTable(regions []domain.Region, result *dataprocessing.AggregateResult) *Table {
	t := &Table{RaceCategories: []string{}, Rows: []Row{}}
	if result == nil {
		return t
	}
	t.RaceCategories = append(t.RaceCategories, result.RaceCategories...)

	for _, region := range regions {
		agg, ok := result.Aggregates[region.ID]
		if !ok {
			continue
		}

		row := Row{
			RegionName: region.Name,
			RegionID:   region.ID,
			LoanCount:  agg.LoanCount,
			Minority:   agg.AvgMinorityPopulation,
			RaceCounts: make([]int, len(t.RaceCategories)),
		}
		for _, f := range domain.NumericFields {
			row.Averages[f] = agg.Average(f)
		}
		for i, race := range t.RaceCategories {
			row.RaceCounts[i] = agg.RaceCounts[race]
		}
		t.Rows = append(t.Rows, row)
	}

	return t
}
