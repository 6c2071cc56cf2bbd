package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"msaloans/internal/config"
)

// FileInfo describes one file in a managed directory
type FileInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Manager provides file operations relative to the application base dir
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		paths:  paths,
		logger: logger.With(slog.String("component", "file_manager")),
	}
}

// FileExists checks if a regular file exists at the given path
func (m *Manager) FileExists(path string) bool {
	fullPath := m.resolvePath(path)
	info, err := os.Stat(fullPath)
	exists := err == nil && !info.IsDir()

	m.logger.Debug("FileExists check",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Bool("exists", exists))

	return exists
}

// ReadFile reads the entire content of a file
func (m *Manager) ReadFile(path string) ([]byte, error) {
	fullPath := m.resolvePath(path)

	m.logger.Debug("Reading file",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.ReadFile(fullPath)
}

// WriteFile replaces the file at path with data. The content is written to
// a temp file in the same directory and renamed into place, so readers never
// see a partial file.
func (m *Manager) WriteFile(path string, data []byte) error {
	fullPath := m.resolvePath(path)

	m.logger.Info("Writing file",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Int("size_bytes", len(data)))

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

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return os.Rename(tmpName, fullPath)
}

// ListFiles returns the regular files in dir sorted by name. Hidden files,
// including in-flight temp files, are skipped. A missing dir yields no files.
func (m *Manager) ListFiles(dir string) ([]FileInfo, error) {
	fullPath := m.resolvePath(dir)

	entries, err := os.ReadDir(fullPath)
	if os.IsNotExist(err) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(fullPath, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// resolvePath joins relative paths onto the base dir
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) || m.paths == nil || m.paths.BaseDir == "" {
		return path
	}
	return filepath.Join(m.paths.BaseDir, path)
}
