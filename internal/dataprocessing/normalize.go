package dataprocessing

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "msaloans/internal/errors"
	"msaloans/pkg/contracts/domain"
)

// keptColumns lists the HMDA columns carried into a LoanRecord
var keptColumns = []string{
	domain.ColumnRegionID,
	domain.ColumnCensusTract,
	domain.ColumnRace,
	domain.ColumnLoanAmount,
	domain.ColumnLoanToValueRatio,
	domain.ColumnInterestRate,
	domain.ColumnTotalLoanCosts,
	domain.ColumnLoanTerm,
	domain.ColumnPropertyValue,
	domain.ColumnIncome,
	domain.ColumnTractMinorityPerc,
}

// project builds a LoanRecord from a column lookup. Missing columns read as "".
func project(get func(column string) string) domain.LoanRecord {
	return domain.LoanRecord{
		RegionID:                       get(domain.ColumnRegionID),
		CensusTract:                    get(domain.ColumnCensusTract),
		RaceCategory:                   get(domain.ColumnRace),
		LoanAmount:                     get(domain.ColumnLoanAmount),
		LoanToValueRatio:               get(domain.ColumnLoanToValueRatio),
		InterestRate:                   get(domain.ColumnInterestRate),
		TotalLoanCosts:                 get(domain.ColumnTotalLoanCosts),
		LoanTermMonths:                 get(domain.ColumnLoanTerm),
		PropertyValue:                  get(domain.ColumnPropertyValue),
		Income:                         get(domain.ColumnIncome),
		TractMinorityPopulationPercent: get(domain.ColumnTractMinorityPerc),
	}
}

// LoanReader streams an HMDA CSV export and yields normalized records.
type LoanReader struct {
	r       *csv.Reader
	index   map[string]int
	line    int
	started bool
}

// NewLoanReader reads the header row from r. An empty input yields a reader
// that is immediately exhausted.
func NewLoanReader(r io.Reader) (*LoanReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	lr := &LoanReader{r: cr, index: make(map[string]int, len(keptColumns))}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return lr, nil
	}
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read loan CSV header", err)
	}
	lr.started = true
	lr.line = 1

	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, seen := lr.index[name]; !seen {
			lr.index[name] = i
		}
	}

	return lr, nil
}

// HasColumn reports whether the header declared column
func (lr *LoanReader) HasColumn(column string) bool {
	_, ok := lr.index[column]
	return ok
}

// Next returns the next normalized record, or io.EOF when the input is done.
func (lr *LoanReader) Next() (domain.LoanRecord, error) {
	if !lr.started {
		return domain.LoanRecord{}, io.EOF
	}

	record, err := lr.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.LoanRecord{}, io.EOF
		}
		return domain.LoanRecord{}, apperrors.NewParsingError(
			fmt.Sprintf("failed to read loan CSV line %d", lr.line+1), err)
	}
	lr.line++

	return project(func(column string) string {
		i, ok := lr.index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}), nil
}

// ReadLoanRecords normalizes every row of an HMDA CSV export. A document
// whose header lacks the region column is rejected rather than folded into
// an unnamed region.
func ReadLoanRecords(r io.Reader) ([]domain.LoanRecord, error) {
	lr, err := NewLoanReader(r)
	if err != nil {
		return nil, err
	}
	if lr.started && !lr.HasColumn(domain.ColumnRegionID) {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("loan CSV header has no %s column", domain.ColumnRegionID), nil)
	}

	records := make([]domain.LoanRecord, 0, 1024)
	for {
		rec, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// EncodeLoanRecords serializes normalized records for the derived cache
func EncodeLoanRecords(records []domain.LoanRecord) ([]byte, error) {
	if records == nil {
		records = []domain.LoanRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to encode normalized records", err)
	}
	return data, nil
}

// DecodeLoanRecords reads the derived cache written by EncodeLoanRecords
func DecodeLoanRecords(data []byte) ([]domain.LoanRecord, error) {
	var records []domain.LoanRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewParsingError("invalid normalized record cache", err)
	}
	return records, nil
}
