package domain

// RegionIncomeRecord is one row of the census income profile
type RegionIncomeRecord struct {
	RegionID           string
	RegionName         string
	AvgHouseholdIncome string
}

// Region is a metropolitan area retained by the income filter
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoanRecord is the normalized projection of one HMDA loan row. Numeric
// fields are kept as text and coerced during aggregation. JSON tags match
// the source column names so the derived cache stays readable.
type LoanRecord struct {
	RegionID                       string `json:"msa_id"`
	CensusTract                    string `json:"census_tract"`
	RaceCategory                   string `json:"derived_race"`
	LoanAmount                     string `json:"loan_amount"`
	LoanToValueRatio               string `json:"loan_to_value_ratio"`
	InterestRate                   string `json:"interest_rate"`
	TotalLoanCosts                 string `json:"total_loan_costs"`
	LoanTermMonths                 string `json:"loan_term"`
	PropertyValue                  string `json:"property_value"`
	Income                         string `json:"income"`
	TractMinorityPopulationPercent string `json:"tract_minority_population_percent"`
}

// Source column names in the HMDA CSV export
const (
	ColumnRegionID          = "derived_msa-md"
	ColumnCensusTract       = "census_tract"
	ColumnRace              = "derived_race"
	ColumnLoanAmount        = "loan_amount"
	ColumnLoanToValueRatio  = "loan_to_value_ratio"
	ColumnInterestRate      = "interest_rate"
	ColumnTotalLoanCosts    = "total_loan_costs"
	ColumnLoanTerm          = "loan_term"
	ColumnPropertyValue     = "property_value"
	ColumnIncome            = "income"
	ColumnTractMinorityPerc = "tract_minority_population_percent"
)

// NumericField enumerates the loan fields that are averaged per region.
type NumericField int

const (
	FieldLoanAmount NumericField = iota
	FieldLoanToValueRatio
	FieldInterestRate
	FieldTotalLoanCosts
	FieldLoanTermMonths
	FieldPropertyValue
	FieldIncome

	numericFieldCount
)

// NumericFieldCount is the number of averaged fields
const NumericFieldCount = int(numericFieldCount)

// NumericFields lists every averaged field in output column order
var NumericFields = [NumericFieldCount]NumericField{
	FieldLoanAmount,
	FieldLoanToValueRatio,
	FieldInterestRate,
	FieldTotalLoanCosts,
	FieldLoanTermMonths,
	FieldPropertyValue,
	FieldIncome,
}

var numericFieldMeta = [NumericFieldCount]struct {
	column, jsonKey, header string
}{
	FieldLoanAmount:       {ColumnLoanAmount, "avgLoanAmount", "Avg Loan Amount"},
	FieldLoanToValueRatio: {ColumnLoanToValueRatio, "avgLtvRatio", "Avg LTV Ratio"},
	FieldInterestRate:     {ColumnInterestRate, "avgInterestRate", "Avg Interest Rate"},
	FieldTotalLoanCosts:   {ColumnTotalLoanCosts, "avgLoanCosts", "Avg Loan Cost"},
	FieldLoanTermMonths:   {ColumnLoanTerm, "avgLoanTermMonths", "Avg Loan Terms (months)"},
	FieldPropertyValue:    {ColumnPropertyValue, "avgPropertyValue", "Avg Property Value"},
	FieldIncome:           {ColumnIncome, "avgIncome", "Avg Income"},
}

// Column returns the HMDA column the field is read from
func (f NumericField) Column() string { return numericFieldMeta[f].column }

// JSONKey returns the aggregate payload key holding the field's average
func (f NumericField) JSONKey() string { return numericFieldMeta[f].jsonKey }

// Header returns the CSV column header for the field's average
func (f NumericField) Header() string { return numericFieldMeta[f].header }

func (f NumericField) String() string { return f.Column() }

// Value returns the raw text of field f in r
func (r *LoanRecord) Value(f NumericField) string {
	switch f {
	case FieldLoanAmount:
		return r.LoanAmount
	case FieldLoanToValueRatio:
		return r.LoanToValueRatio
	case FieldInterestRate:
		return r.InterestRate
	case FieldTotalLoanCosts:
		return r.TotalLoanCosts
	case FieldLoanTermMonths:
		return r.LoanTermMonths
	case FieldPropertyValue:
		return r.PropertyValue
	case FieldIncome:
		return r.Income
	}
	return ""
}
