package dataprocessing

import (
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msaloans/internal/shared/testutil"
	"msaloans/pkg/contracts/domain"
)

func loan(region, tract, race, amount, minority string) domain.LoanRecord {
	return domain.LoanRecord{
		RegionID:                       region,
		CensusTract:                    tract,
		RaceCategory:                   race,
		LoanAmount:                     amount,
		LoanToValueRatio:               "80",
		InterestRate:                   "4",
		TotalLoanCosts:                 "1000",
		LoanTermMonths:                 "360",
		PropertyValue:                  "200000",
		Income:                         "50",
		TractMinorityPopulationPercent: minority,
	}
}

func TestAggregateSampleLoans(t *testing.T) {
	records, err := ReadLoanRecords(strings.NewReader(testutil.LoanCSV(testutil.SampleLoanRows...)))
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	names := map[string]string{"10180": "Abilene, TX Metro Area", "10500": "Albany, GA Metro Area"}
	result := Aggregate(records, names, logger)

	assert.Equal(t, 4, result.RecordCount)
	assert.Equal(t, []string{"10180", "10500"}, result.RegionIDs())
	assert.Equal(t, []string{"White", "Black or African American", "Asian"}, result.RaceCategories)

	abilene := result.Aggregates["10180"]
	require.NotNil(t, abilene)
	assert.Equal(t, "Abilene, TX Metro Area", abilene.RegionName)
	assert.Equal(t, 3, abilene.LoanCount)
	assert.Equal(t, 100.0, abilene.AvgLoanAmount)
	assert.Equal(t, 85.0, abilene.AvgLtvRatio)
	assert.Equal(t, 4.0, abilene.AvgInterestRate)
	assert.Equal(t, 2500.0, abilene.AvgLoanCosts)
	assert.Equal(t, 300.0, abilene.AvgLoanTermMonths)
	assert.Equal(t, 135000.0, abilene.AvgPropertyValue)
	assert.Equal(t, 45000.0, abilene.AvgIncome)
	assert.Equal(t, 70.0, abilene.AvgMinorityPopulation)
	assert.Equal(t, map[string]float64{"48441010100": 90, "48441010200": 50}, abilene.Tracts)
	assert.Equal(t, map[string]int{"White": 2, "Black or African American": 1}, abilene.RaceCounts)
	assert.Empty(t, abilene.ZeroDenominatorFields)

	albany := result.Aggregates["10500"]
	require.NotNil(t, albany)
	assert.Equal(t, 1, albany.LoanCount)
	assert.Equal(t, 70000.0, albany.AvgIncome)
	assert.Equal(t, 0.0, albany.AvgMinorityPopulation, "non-numeric tract percent counts as 0")

	assert.Equal(t, 1, result.Excluded[domain.FieldLoanAmount])
	assert.Equal(t, 1, result.Excluded[domain.FieldIncome])
}

func TestAggregateExcludesNonNumericPerField(t *testing.T) {
	records := []domain.LoanRecord{
		loan("1", "t1", "White", "100", "10"),
		loan("1", "t1", "White", "Exempt", "10"),
		loan("1", "t1", "White", "100", "10"),
	}

	result := Aggregate(records, nil, nil)
	agg := result.Aggregates["1"]

	assert.Equal(t, 3, agg.LoanCount, "excluded values still count as loans")
	assert.Equal(t, 100.0, agg.AvgLoanAmount)
	assert.Equal(t, 80.0, agg.AvgLtvRatio)
	assert.Equal(t, 50000.0, agg.AvgIncome)
	assert.Equal(t, "", agg.RegionName)
}

func TestAggregateMinorityAveragesDistinctTracts(t *testing.T) {
	records := []domain.LoanRecord{
		loan("1", "001", "White", "100", "10"),
		loan("1", "001", "White", "100", "90"),
		loan("1", "002", "White", "100", "50"),
	}

	result := Aggregate(records, nil, nil)
	agg := result.Aggregates["1"]

	assert.Equal(t, map[string]float64{"001": 90, "002": 50}, agg.Tracts, "last value per tract wins")
	assert.Equal(t, 70.0, agg.AvgMinorityPopulation)
}

func TestAggregateZeroDenominator(t *testing.T) {
	a := loan("1", "t1", "White", "Exempt", "10")
	b := loan("1", "t1", "White", "NA", "10")
	a.Income, b.Income = "", "NA"

	logger, logs := testutil.NewTestLogger(t)
	result := Aggregate([]domain.LoanRecord{a, b}, nil, logger)
	agg := result.Aggregates["1"]

	assert.Equal(t, 2, agg.LoanCount)
	assert.Equal(t, 0.0, agg.AvgLoanAmount)
	assert.Equal(t, 0.0, agg.AvgIncome)
	assert.Equal(t, []string{"avgLoanAmount", "avgIncome"}, agg.ZeroDenominatorFields)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "region has fields with no numeric values")

	data, err := json.Marshal(agg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"zeroDenominatorFields":["avgLoanAmount","avgIncome"]`)
}

func TestAggregateRounding(t *testing.T) {
	records := []domain.LoanRecord{
		loan("1", "t1", "White", "1", "1"),
		loan("1", "t2", "White", "1", "1"),
		loan("1", "t3", "White", "2", "2"),
	}

	agg := Aggregate(records, nil, nil).Aggregates["1"]
	assert.Equal(t, 1.33, agg.AvgLoanAmount)
	assert.Equal(t, 1.33, agg.AvgMinorityPopulation)
}

func TestAggregateRaceCategoriesFirstSeen(t *testing.T) {
	records := []domain.LoanRecord{
		loan("2", "t", "Asian", "1", "1"),
		loan("1", "t", "White", "1", "1"),
		loan("2", "t", "White", "1", "1"),
		loan("1", "t", "", "1", "1"),
		loan("1", "t", "Asian", "1", "1"),
	}

	result := Aggregate(records, nil, nil)

	assert.Equal(t, []string{"Asian", "White", ""}, result.RaceCategories)
	assert.Equal(t, map[string]int{"White": 1, "": 1, "Asian": 1}, result.Aggregates["1"].RaceCounts)
	assert.Equal(t, map[string]int{"Asian": 1, "White": 1}, result.Aggregates["2"].RaceCounts)
}

func TestAggregateLoanCountSumsToRecords(t *testing.T) {
	records := make([]domain.LoanRecord, 0, 50)
	for i := 0; i < 50; i++ {
		region := []string{"10180", "10500", "9000", "abc"}[i%4]
		records = append(records, loan(region, "t", "White", "100", "10"))
	}

	result := Aggregate(records, nil, nil)

	total := 0
	for _, agg := range result.Aggregates {
		total += agg.LoanCount
	}
	assert.Equal(t, len(records), total)
	assert.Equal(t, []string{"9000", "10180", "10500", "abc"}, result.RegionIDs())
}

func TestAggregateEmpty(t *testing.T) {
	result := Aggregate(nil, nil, nil)
	assert.Empty(t, result.Aggregates)
	assert.NotNil(t, result.RaceCategories)
	assert.Empty(t, result.RegionIDs())
}

func TestAggregateRepeatable(t *testing.T) {
	records := []domain.LoanRecord{
		loan("10500", "13095000100", "Black or African American", "150", "62"),
		loan("10180", "48441010100", "White", "100", "20"),
		loan("9000", "01001020100", "Asian", "310", "8"),
		loan("10180", "48441010200", "Asian", "90", "35"),
		loan("10500", "13095000200", "White", "210", "41"),
		loan("10180", "48441010100", "Black or African American", "120", "20"),
		loan("9000", "01001020200", "White", "NA", "12"),
		loan("10500", "13095000100", "Asian", "175", "62"),
		loan("10180", "48441010300", "White", "130", "Exempt"),
	}
	names := map[string]string{"9000": "Ninth", "10180": "Abilene, TX Metro Area", "10500": "Albany, GA Metro Area"}

	first := Aggregate(records, names, nil)
	for i := 0; i < 3; i++ {
		again := Aggregate(records, names, nil)
		assert.Equal(t, first.RaceCategories, again.RaceCategories)
		assert.Equal(t, first.RegionIDs(), again.RegionIDs())
		assert.Equal(t, first.Aggregates, again.Aggregates)
	}
	assert.Equal(t, []string{"Black or African American", "White", "Asian"}, first.RaceCategories)
	assert.Equal(t, []string{"9000", "10180", "10500"}, first.RegionIDs())
}

func TestAggregatorIncrementalFold(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Fold(loan("1", "t", "White", "100", "10"))
	agg.FoldAll([]domain.LoanRecord{loan("1", "t", "White", "300", "10")})

	result := agg.Finalize(nil)
	assert.Equal(t, 2, result.RecordCount)
	assert.Equal(t, 200.0, result.Aggregates["1"].AvgLoanAmount)
}

func TestSortRegionIDs(t *testing.T) {
	ids := []string{"10500", "abc", "9", "10180", "", "aaa"}
	SortRegionIDs(ids)
	assert.Equal(t, []string{"9", "10180", "10500", "", "aaa", "abc"}, ids)
}
