package files

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msaloans/internal/config"
	"msaloans/internal/shared/testutil"
)

type fetchCounter struct {
	calls int
	data  []byte
	err   error
}

func (f *fetchCounter) fetch(context.Context) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func setupCache(t *testing.T) (*Cache, string, *testutil.BufferedSlogHandler) {
	t.Helper()
	base := t.TempDir()
	logger, logs := testutil.NewTestLogger(t)
	manager := NewManager(&config.Paths{BaseDir: base}, logger)
	dir := filepath.Join(base, "inputCache")
	return NewCache(manager, dir, nil, logger), dir, logs
}

func TestCacheLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("miss fetches and stores", func(t *testing.T) {
		cache, dir, _ := setupCache(t)
		src := &fetchCounter{data: []byte(`[["NAME"]]`)}

		data, err := cache.Load(ctx, config.RegionIncomeFile, src.fetch)
		require.NoError(t, err)
		assert.Equal(t, src.data, data)
		assert.Equal(t, 1, src.calls)

		stored, err := os.ReadFile(filepath.Join(dir, config.RegionIncomeFile))
		require.NoError(t, err)
		assert.Equal(t, src.data, stored)
	})

	t.Run("hit skips fetch", func(t *testing.T) {
		cache, _, _ := setupCache(t)
		require.NoError(t, cache.Put(ctx, config.LoanDataFile, []byte("cached")))

		src := &fetchCounter{data: []byte("fresh")}
		data, err := cache.Load(ctx, config.LoanDataFile, src.fetch)
		require.NoError(t, err)
		assert.Equal(t, "cached", string(data))
		assert.Zero(t, src.calls)
	})

	t.Run("second load is served from cache", func(t *testing.T) {
		cache, _, _ := setupCache(t)
		src := &fetchCounter{data: []byte("payload")}

		_, err := cache.Load(ctx, "x.json", src.fetch)
		require.NoError(t, err)
		_, err = cache.Load(ctx, "x.json", src.fetch)
		require.NoError(t, err)
		assert.Equal(t, 1, src.calls)
	})

	t.Run("empty file is a miss", func(t *testing.T) {
		cache, dir, logs := setupCache(t)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.json"), nil, 0644))

		src := &fetchCounter{data: []byte("payload")}
		data, err := cache.Load(ctx, "x.json", src.fetch)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
		testutil.AssertLogContains(t, logs, slog.LevelWarn, "ignoring empty cache file")
	})

	t.Run("fetch error is returned and nothing is stored", func(t *testing.T) {
		cache, dir, _ := setupCache(t)
		boom := errors.New("upstream down")
		src := &fetchCounter{err: boom}

		_, err := cache.Load(ctx, "x.json", src.fetch)
		assert.ErrorIs(t, err, boom)
		assert.NoFileExists(t, filepath.Join(dir, "x.json"))
	})

	t.Run("write failure is not fatal", func(t *testing.T) {
		cache, dir, logs := setupCache(t)
		// a regular file where the cache directory should be
		require.NoError(t, os.WriteFile(dir, []byte("blocker"), 0644))

		src := &fetchCounter{data: []byte("payload")}
		data, err := cache.Load(ctx, "x.json", src.fetch)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
		testutil.AssertLogContains(t, logs, slog.LevelWarn, "cache write failed")
	})
}

func TestCacheFiles(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := setupCache(t)

	require.NoError(t, cache.Put(ctx, config.RegionIncomeFile, []byte("[]")))
	require.NoError(t, cache.Put(ctx, config.LoanDataFile, []byte("h\n")))

	files, err := cache.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, config.LoanDataFile, files[0].Name)
	assert.Equal(t, config.RegionIncomeFile, files[1].Name)
}
