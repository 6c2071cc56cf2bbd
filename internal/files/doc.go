// Package files provides file system operations for the cache directories.
//
// Manager resolves paths against the application base dir and replaces
// files atomically. Cache layers read-or-fetch-and-write semantics on top of
// it, keyed by dataset file name:
//
//	cache := files.NewCache(manager, paths.InputCacheDir, metrics, logger)
//	data, err := cache.Load(ctx, config.RegionIncomeFile, census.FetchRegionIncome)
package files
