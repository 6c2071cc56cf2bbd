package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"msaloans/internal/config"
	apperrors "msaloans/internal/errors"
	"msaloans/pkg/contracts/domain"
)

// TableName is the aggregate table
const TableName = "msa_aggregates"

// upsertChunkSize bounds rows per INSERT so the statement stays well under
// the Postgres parameter limit.
const upsertChunkSize = 500

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS msa_aggregates (
		region_id TEXT PRIMARY KEY,
		region_name TEXT NOT NULL,
		loan_count INTEGER NOT NULL,
		avg_loan_amount DOUBLE PRECISION NOT NULL,
		avg_ltv_ratio DOUBLE PRECISION NOT NULL,
		avg_interest_rate DOUBLE PRECISION NOT NULL,
		avg_loan_costs DOUBLE PRECISION NOT NULL,
		avg_loan_term_months DOUBLE PRECISION NOT NULL,
		avg_property_value DOUBLE PRECISION NOT NULL,
		avg_income DOUBLE PRECISION NOT NULL,
		avg_minority_population DOUBLE PRECISION NOT NULL,
		race_counts JSONB NOT NULL,
		zero_denominator_fields TEXT[] NOT NULL DEFAULT '{}',
		run_id TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)
`

var upsertColumns = []string{
	"region_id", "region_name", "loan_count",
	"avg_loan_amount", "avg_ltv_ratio", "avg_interest_rate", "avg_loan_costs",
	"avg_loan_term_months", "avg_property_value", "avg_income",
	"avg_minority_population", "race_counts", "zero_denominator_fields",
	"run_id", "updated_at",
}

// Executor is implemented by *pgxpool.Pool and pgx.Tx
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// AggregateStore writes aggregates through a connection pool
type AggregateStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to Postgres and ensures the schema exists
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*AggregateStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "store"))

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid postgres url", err)
	}
	poolCfg.MinConns = 0
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolCfg)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create postgres pool", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, apperrors.NewStorageError("failed to ping postgres", err)
	}

	s := &AggregateStore{pool: pool, logger: logger, now: time.Now}
	if err := s.EnsureSchema(connCtx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("PostgreSQL aggregate store ready",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.String("database", poolCfg.ConnConfig.Database))
	return s, nil
}

// EnsureSchema creates the aggregate table when missing
func (s *AggregateStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return apperrors.NewStorageError("failed to create aggregate table", err)
	}
	return nil
}

// SaveAggregates upserts every aggregate in one transaction
func (s *AggregateStore) SaveAggregates(ctx context.Context, runID string, aggregates []*domain.RegionAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := writeAggregates(ctx, tx, runID, s.now().UTC(), aggregates); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewStorageError("failed to commit aggregates", err)
	}

	s.logger.InfoContext(ctx, "aggregates persisted",
		slog.String("run_id", runID),
		slog.Int("regions", len(aggregates)))
	return nil
}

// writeAggregates executes the chunked upserts on exec
func writeAggregates(ctx context.Context, exec Executor, runID string, at time.Time, aggregates []*domain.RegionAggregate) error {
	for start := 0; start < len(aggregates); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(aggregates) {
			end = len(aggregates)
		}

		query, args, err := buildUpsert(runID, at, aggregates[start:end])
		if err != nil {
			return apperrors.NewStorageError("failed to build upsert", err)
		}
		if _, err := exec.Exec(ctx, query, args...); err != nil {
			return apperrors.NewStorageError("failed to upsert aggregates", err).
				WithContext("offset", start)
		}
	}
	return nil
}

// buildUpsert renders one multi-row INSERT ... ON CONFLICT statement
func buildUpsert(runID string, at time.Time, aggregates []*domain.RegionAggregate) (string, []interface{}, error) {
	insert := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(TableName).
		Columns(upsertColumns...)

	for _, agg := range aggregates {
		races, err := json.Marshal(agg.RaceCounts)
		if err != nil {
			return "", nil, fmt.Errorf("encode race counts for %s: %w", agg.RegionID, err)
		}
		zeroFields := agg.ZeroDenominatorFields
		if zeroFields == nil {
			zeroFields = []string{}
		}

		insert = insert.Values(
			agg.RegionID, agg.RegionName, agg.LoanCount,
			agg.AvgLoanAmount, agg.AvgLtvRatio, agg.AvgInterestRate, agg.AvgLoanCosts,
			agg.AvgLoanTermMonths, agg.AvgPropertyValue, agg.AvgIncome,
			agg.AvgMinorityPopulation, string(races), zeroFields,
			runID, at,
		)
	}

	return insert.Suffix(upsertConflictClause()).ToSql()
}

func upsertConflictClause() string {
	clause := "ON CONFLICT (region_id) DO UPDATE SET "
	for i, col := range upsertColumns[1:] {
		if i > 0 {
			clause += ", "
		}
		clause += col + " = EXCLUDED." + col
	}
	return clause
}

// Ping checks connectivity
func (s *AggregateStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool
func (s *AggregateStore) Close() {
	s.pool.Close()
}
