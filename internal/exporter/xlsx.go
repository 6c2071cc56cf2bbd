package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/xuri/excelize/v2"

	"msaloans/internal/config"
)

// SheetName is the worksheet holding the aggregate table
const SheetName = "MSA Aggregates"

// XLSXWriter writes the aggregate table as a workbook
type XLSXWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewXLSXWriter creates a new workbook writer
func NewXLSXWriter(paths *config.Paths, logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{
		paths:  paths,
		logger: logger.With(slog.String("component", "xlsx_writer")),
	}
}

// BuildWorkbook lays the table out on a single sheet. Names are plain text
// and every other cell is numeric.
func BuildWorkbook(t *Table) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := t.Header()
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, 0, len(header))
		cells = append(cells, row.RegionName, regionIDCell(row.RegionID), row.LoanCount)
		for _, v := range row.Averages {
			cells = append(cells, v)
		}
		cells = append(cells, row.Minority)
		for _, n := range row.RaceCounts {
			cells = append(cells, n)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", 40); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// regionIDCell keeps numeric ids numeric in the sheet
func regionIDCell(id string) interface{} {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != id {
		return id
	}
	return n
}

// Write renders the table to fileName in the output cache and returns the
// full path.
func (w *XLSXWriter) Write(fileName string, t *Table) (string, error) {
	fullPath := w.paths.OutputCachePath(fileName)

	w.logger.Info("Writing workbook",
		slog.String("file_path", fileName),
		slog.String("full_path", fullPath),
		slog.Int("row_count", len(t.Rows)))

	f, err := BuildWorkbook(t)
	if err != nil {
		return "", err
	}
	defer f.Close()

	err = writeFileAtomic(fullPath, func(out io.Writer) error {
		_, err := f.WriteTo(out)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return fullPath, nil
}
