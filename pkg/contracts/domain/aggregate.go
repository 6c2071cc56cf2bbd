package domain

// RegionAggregate holds the finalized statistics of one region. JSON keys
// are part of the public /aggregateData payload.
type RegionAggregate struct {
	RegionID   string `json:"group"`
	RegionName string `json:"msaName"`
	LoanCount  int    `json:"loanCount"`

	AvgLoanAmount         float64 `json:"avgLoanAmount"`
	AvgLtvRatio           float64 `json:"avgLtvRatio"`
	AvgInterestRate       float64 `json:"avgInterestRate"`
	AvgLoanCosts          float64 `json:"avgLoanCosts"`
	AvgLoanTermMonths     float64 `json:"avgLoanTermMonths"`
	AvgPropertyValue      float64 `json:"avgPropertyValue"`
	AvgIncome             float64 `json:"avgIncome"`
	AvgMinorityPopulation float64 `json:"avgMinorityPopulation"`

	// Tracts maps census tract to its minority population percent
	Tracts     map[string]float64 `json:"tracts"`
	RaceCounts map[string]int     `json:"raceCounts"`

	// ZeroDenominatorFields lists the payload keys of averages that had no
	// numeric values and were reported as 0.
	ZeroDenominatorFields []string `json:"zeroDenominatorFields,omitempty"`
}

// Average returns the finalized average of f
func (a *RegionAggregate) Average(f NumericField) float64 {
	switch f {
	case FieldLoanAmount:
		return a.AvgLoanAmount
	case FieldLoanToValueRatio:
		return a.AvgLtvRatio
	case FieldInterestRate:
		return a.AvgInterestRate
	case FieldTotalLoanCosts:
		return a.AvgLoanCosts
	case FieldLoanTermMonths:
		return a.AvgLoanTermMonths
	case FieldPropertyValue:
		return a.AvgPropertyValue
	case FieldIncome:
		return a.AvgIncome
	}
	return 0
}

// SetAverage stores the finalized average of f
func (a *RegionAggregate) SetAverage(f NumericField, v float64) {
	switch f {
	case FieldLoanAmount:
		a.AvgLoanAmount = v
	case FieldLoanToValueRatio:
		a.AvgLtvRatio = v
	case FieldInterestRate:
		a.AvgInterestRate = v
	case FieldTotalLoanCosts:
		a.AvgLoanCosts = v
	case FieldLoanTermMonths:
		a.AvgLoanTermMonths = v
	case FieldPropertyValue:
		a.AvgPropertyValue = v
	case FieldIncome:
		a.AvgIncome = v
	}
}
