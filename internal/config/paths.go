package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Well-known artifact names inside the cache directories.
const (
	RegionIncomeFile   = "msa.json"
	LoanDataFile       = "cfpbLoanData.csv"
	NormalizedLoanFile = "usefulData.json"
	AggregateCSVFile   = "aggregateOutput.csv"
	AggregateXLSXFile  = "aggregateOutput.xlsx"
)

// Paths contains every resolved directory used by the application.
// This is the single source of truth for file locations.
type Paths struct {
	BaseDir        string
	InputCacheDir  string
	OutputCacheDir string
	PublicDir      string
	LogsDir        string
}

// ResolvePaths turns the configured layout into absolute directories.
// An empty BaseDir resolves to the directory containing the executable.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		exeDir, err := executableDir()
		if err != nil {
			return nil, err
		}
		base = exeDir
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %q: %w", cfg.BaseDir, err)
	}

	return &Paths{
		BaseDir:        base,
		InputCacheDir:  resolveDir(base, cfg.InputCacheDir),
		OutputCacheDir: resolveDir(base, cfg.OutputCacheDir),
		PublicDir:      resolveDir(base, cfg.PublicDir),
		LogsDir:        resolveDir(base, cfg.LogsDir),
	}, nil
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return filepath.Dir(exe), nil
}

func resolveDir(base, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(base, dir)
}

// EnsureDirectories creates all required directories if they don't exist.
// The public directory is served as-is and is never created.
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.InputCacheDir,
		p.OutputCacheDir,
		p.LogsDir,
	}

	logger := slog.Default()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// OutputCachePath returns the path of a derived artifact
func (p *Paths) OutputCachePath(filename string) string {
	return filepath.Join(p.OutputCacheDir, filename)
}

// LogPath returns the path for a log file
func (p *Paths) LogPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(p.LogsDir, filename)
}

// LogPathResolution logs the resolved layout at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("input_cache", p.InputCacheDir),
			slog.String("output_cache", p.OutputCacheDir),
			slog.String("public", p.PublicDir),
			slog.String("logs", p.LogsDir),
		))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
