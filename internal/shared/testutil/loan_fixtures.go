package testutil

import (
	"encoding/json"
	"strings"
)

// LoanCSVHeader is a trimmed HMDA export header. It carries every column the
// normalizer keeps plus a few it must drop.
var LoanCSVHeader = []string{
	"activity_year", "lei", "derived_msa-md", "state_code", "census_tract",
	"derived_race", "action_taken", "loan_amount", "loan_to_value_ratio",
	"interest_rate", "total_loan_costs", "loan_term", "property_value",
	"income", "tract_minority_population_percent",
}

// LoanRow builds one loan CSV row in LoanCSVHeader order.
type LoanRow struct {
	RegionID        string
	Tract           string
	Race            string
	Amount          string
	LTV             string
	Rate            string
	Costs           string
	Term            string
	PropertyValue   string
	Income          string
	MinorityPercent string
}

func (r LoanRow) fields() []string {
	return []string{
		"2019", "LEI0001", r.RegionID, "01", r.Tract,
		r.Race, "1", r.Amount, r.LTV,
		r.Rate, r.Costs, r.Term, r.PropertyValue,
		r.Income, r.MinorityPercent,
	}
}

// LoanCSV renders rows as an HMDA-style CSV document
func LoanCSV(rows ...LoanRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(LoanCSVHeader, ","))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(strings.Join(r.fields(), ","))
	}
	b.WriteString("\n")
	return b.String()
}

// CensusPayload renders census rows as the JSON array-of-arrays returned by
// the ACS profile API, header row included.
func CensusPayload(rows ...[3]string) []byte {
	out := [][]string{{"NAME", "DP03_0063E", "metropolitan statistical area/micropolitan statistical area"}}
	for _, r := range rows {
		out = append(out, []string{r[0], r[1], r[2]})
	}
	data, _ := json.Marshal(out)
	return data
}

// SampleCensusRows has two regions under the 50000 threshold, one at it and
// one above it.
var SampleCensusRows = [][3]string{
	{"Abilene, TX Metro Area", "42000", "10180"},
	{"Aberdeen, SD Micro Area", "50000", "10100"},
	{"Akron, OH Metro Area", "60000", "10420"},
	{"Albany, GA Metro Area", "41000.5", "10500"},
}

// SampleLoanRows exercise exclusion, tract de-duplication and race tallies
// across the two low income regions.
var SampleLoanRows = []LoanRow{
	{RegionID: "10180", Tract: "48441010100", Race: "White", Amount: "100", LTV: "80", Rate: "4.5", Costs: "3000", Term: "360", PropertyValue: "125000", Income: "40", MinorityPercent: "90"},
	{RegionID: "10180", Tract: "48441010100", Race: "Black or African American", Amount: "Exempt", LTV: "NA", Rate: "4.0", Costs: "NA", Term: "360", PropertyValue: "135000", Income: "50", MinorityPercent: "90"},
	{RegionID: "10180", Tract: "48441010200", Race: "White", Amount: "100", LTV: "90", Rate: "3.5", Costs: "2000", Term: "180", PropertyValue: "145000", Income: "", MinorityPercent: "50"},
	{RegionID: "10500", Tract: "13095000100", Race: "Asian", Amount: "200", LTV: "75", Rate: "5", Costs: "4000", Term: "360", PropertyValue: "250000", Income: "70", MinorityPercent: "NA"},
}
