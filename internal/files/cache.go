package files

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"

	"msaloans/internal/infrastructure"
)

// FetchFunc produces a dataset when the cache does not hold it
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cache stores raw datasets as files in one directory, keyed by file name.
// It assumes a single writer.
type Cache struct {
	manager *Manager
	dir     string
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewCache creates a cache rooted at dir
func NewCache(manager *Manager, dir string, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		manager: manager,
		dir:     dir,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "cache"), slog.String("dir", dir)),
	}
}

// Path returns the file backing name
func (c *Cache) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// Get returns the cached dataset. Missing, unreadable and empty files are
// all misses.
func (c *Cache) Get(ctx context.Context, name string) ([]byte, bool) {
	data, err := c.manager.ReadFile(c.Path(name))
	hit := err == nil && len(data) > 0
	infrastructure.RecordCacheLookup(ctx, c.metrics, name, hit)

	switch {
	case err == nil && len(data) == 0:
		c.logger.WarnContext(ctx, "ignoring empty cache file", slog.String("dataset", name))
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		c.logger.WarnContext(ctx, "cache read failed",
			slog.String("dataset", name),
			slog.String("error", err.Error()))
	}

	if !hit {
		return nil, false
	}
	c.logger.DebugContext(ctx, "cache hit",
		slog.String("dataset", name),
		slog.Int("size_bytes", len(data)))
	return data, true
}

// Put stores a dataset
func (c *Cache) Put(ctx context.Context, name string, data []byte) error {
	if err := c.manager.WriteFile(c.Path(name), data); err != nil {
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("dataset", name),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Load returns the cached dataset or fetches and stores it. Cache read and
// write failures are logged and never fail the load; only fetch errors do.
func (c *Cache) Load(ctx context.Context, name string, fetch FetchFunc) ([]byte, error) {
	if data, ok := c.Get(ctx, name); ok {
		c.logger.InfoContext(ctx, "dataset loaded from cache", slog.String("dataset", name))
		return data, nil
	}

	data, err := fetch(ctx)
	infrastructure.RecordSourceFetch(ctx, c.metrics, name, err)
	if err != nil {
		return nil, err
	}

	// Put logs its own failure and the fetched data is still usable
	_ = c.Put(ctx, name, data)
	return data, nil
}

// Files lists the datasets currently cached
func (c *Cache) Files() ([]FileInfo, error) {
	return c.manager.ListFiles(c.dir)
}
