package exporter

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"msaloans/internal/config"
)

// RenderCSV renders the table as text lines, header first. The region name
// is always quoted; other cells are written bare.
func RenderCSV(t *Table) []string {
	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, strings.Join(t.Header(), ","))

	cells := make([]string, 0, FixedColumnCount+len(t.RaceCategories))
	for _, row := range t.Rows {
		cells = cells[:0]
		cells = append(cells,
			quoteField(row.RegionName),
			row.RegionID,
			strconv.Itoa(row.LoanCount))
		for _, v := range row.Averages {
			cells = append(cells, formatNumber(v))
		}
		cells = append(cells, formatNumber(row.Minority))
		for _, n := range row.RaceCounts {
			cells = append(cells, strconv.Itoa(n))
		}
		lines = append(lines, strings.Join(cells, ","))
	}

	return lines
}

// JoinLines joins rendered lines with "\n" and no trailing newline
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// formatNumber writes the shortest decimal that round-trips v
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CSVWriter writes rendered artifacts into the output cache
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		paths:  paths,
		logger: logger.With(slog.String("component", "csv_writer")),
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteLines writes lines to fileName in the output cache and returns the
// full path. The file is replaced atomically.
func (w *CSVWriter) WriteLines(fileName string, lines []string, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(fileName)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", fileName),
		slog.String("full_path", fullPath),
		slog.Int("line_count", len(lines)))

	err := writeFileAtomic(fullPath, func(out io.Writer) error {
		bw := bufio.NewWriter(out)
		if options.BOMPrefix {
			if _, err := bw.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}
		if _, err := bw.WriteString(JoinLines(lines)); err != nil {
			return fmt.Errorf("failed to write lines: %w", err)
		}
		return bw.Flush()
	})
	if err != nil {
		return "", err
	}
	return fullPath, nil
}

// resolvePath places relative names in the output cache
func (w *CSVWriter) resolvePath(fileName string) string {
	if filepath.IsAbs(fileName) {
		return fileName
	}
	return w.paths.OutputCachePath(fileName)
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(fullPath string, write func(io.Writer) error) error {
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", fullPath, err)
	}
	return nil
}
