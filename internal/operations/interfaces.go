package operations

import (
	"context"

	"msaloans/internal/exporter"
	"msaloans/internal/files"
	"msaloans/pkg/contracts/domain"
)

// RegionSource fetches the census income payload
type RegionSource interface {
	FetchRegionIncome(ctx context.Context) ([]byte, error)
}

// LoanSource fetches the HMDA CSV export for a set of regions
type LoanSource interface {
	FetchLoans(ctx context.Context, regionIDs []string) ([]byte, error)
}

// DatasetCache stores datasets by name
type DatasetCache interface {
	Get(ctx context.Context, name string) ([]byte, bool)
	Put(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string, fetch files.FetchFunc) ([]byte, error)
}

// LinesWriter persists rendered CSV lines
type LinesWriter interface {
	WriteLines(fileName string, lines []string, options exporter.WriteOptions) (string, error)
}

// TableWriter persists a rendered table in another format
type TableWriter interface {
	Write(fileName string, t *exporter.Table) (string, error)
}

// AggregateSink receives the finalized aggregates of a run
type AggregateSink interface {
	SaveAggregates(ctx context.Context, runID string, aggregates []*domain.RegionAggregate) error
}
