package dataprocessing

import (
	"encoding/json"
	"fmt"
	"strconv"

	apperrors "msaloans/internal/errors"
	"msaloans/pkg/contracts/domain"
)

// RegionSelection is the output of FilterRegions
type RegionSelection struct {
	// Regions holds the retained regions in input order
	Regions []domain.Region
	// NameByID maps every retained region id to its name
	NameByID map[string]string
}

// IDs returns the retained region ids in order
func (s RegionSelection) IDs() []string {
	ids := make([]string, len(s.Regions))
	for i, r := range s.Regions {
		ids[i] = r.ID
	}
	return ids
}

// DecodeCensusRows decodes the census profile payload, a JSON array of
// [name, income, region id] string rows. The leading header row is returned
// like any other row and is dropped by FilterRegions because its income cell
// is not numeric. Rows with fewer than three cells are skipped.
func DecodeCensusRows(data []byte) ([]domain.RegionIncomeRecord, error) {
	var raw [][]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewParsingError("invalid census payload", err)
	}

	rows := make([]domain.RegionIncomeRecord, 0, len(raw))
	for _, cells := range raw {
		if len(cells) < 3 {
			continue
		}
		rows = append(rows, domain.RegionIncomeRecord{
			RegionName:         cellString(cells[0]),
			AvgHouseholdIncome: cellString(cells[1]),
			RegionID:           cellString(cells[2]),
		})
	}
	return rows, nil
}

// cellString renders a census cell as text. The API sends strings, but
// numbers and nulls are tolerated.
func cellString(v interface{}) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(c)
	}
}

// FilterRegions keeps regions whose income is strictly below threshold.
// Non-numeric incomes are never retained. A region id seen twice keeps its
// first occurrence.
func FilterRegions(rows []domain.RegionIncomeRecord, threshold float64) RegionSelection {
	sel := RegionSelection{
		Regions:  make([]domain.Region, 0),
		NameByID: make(map[string]string),
	}

	for _, row := range rows {
		income, ok := ParseIncome(row.AvgHouseholdIncome)
		if !ok || !(income < threshold) {
			continue
		}
		if _, dup := sel.NameByID[row.RegionID]; dup {
			continue
		}
		sel.Regions = append(sel.Regions, domain.Region{ID: row.RegionID, Name: row.RegionName})
		sel.NameByID[row.RegionID] = row.RegionName
	}

	return sel
}

// SelectRegions decodes a census payload and filters it in one step
func SelectRegions(data []byte, threshold float64) (RegionSelection, error) {
	rows, err := DecodeCensusRows(data)
	if err != nil {
		return RegionSelection{}, fmt.Errorf("decode census rows: %w", err)
	}
	return FilterRegions(rows, threshold), nil
}
