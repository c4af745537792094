package database

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/hpi"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var copyColumns = []string{"region_name", "date", "average_price", "index", "average_annual_salary"}

// PostgresConfig controls the connection pool behind the Postgres store.
type PostgresConfig struct {
	DSN      string
	Table    string
	MaxConns int32
	MinConns int32
}

// pgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresProvider implements Provider on top of a pgx connection pool.
type PostgresProvider struct {
	pool   pgxPool
	table  string
	logger *zap.Logger
}

// NewPostgres applies the embedded migrations and opens a connection pool.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresProvider, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "uk_hpi"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	if err := Migrate(cfg.DSN); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresProvider{pool: pool, table: table, logger: logger}, nil
}

// NewPostgresWithPool constructs a store from an existing pool (primarily for testing).
func NewPostgresWithPool(pool pgxPool, table string, logger *zap.Logger) (*PostgresProvider, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "uk_hpi"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresProvider{pool: pool, table: table, logger: logger}, nil
}

// ReplaceAll truncates the table and bulk-copies all records inside one
// transaction, so a failed run leaves the previous dataset intact and a
// re-run over the same source yields the same row count.
func (p *PostgresProvider) ReplaceAll(ctx context.Context, records []hpi.PriceRecord) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replace transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", p.table)); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", p.table, err)
	}

	copied, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{p.table},
		copyColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			var salary any
			if rec.Salary.Valid {
				salary = numericFromDecimal(rec.Salary.Decimal)
			}
			return []any{
				rec.Region,
				rec.Date,
				numericFromDecimal(rec.AveragePrice),
				numericFromDecimal(rec.Index),
				salary,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy records into %s: %w", p.table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace transaction: %w", err)
	}

	p.logger.Info("Dataset replaced", zap.Int64("rows", copied), zap.String("table", p.table))
	return copied, nil
}

// DistinctRegions returns the ordered set of region names.
func (p *PostgresProvider) DistinctRegions(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT region_name FROM %s ORDER BY region_name", p.table)
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var region string
		if err := rows.Scan(&region); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return regions, nil
}

// SeriesByRegion returns the ordered time series for one region. Unknown
// regions produce an empty slice.
func (p *PostgresProvider) SeriesByRegion(ctx context.Context, region string) ([]hpi.PriceRecord, error) {
	query := fmt.Sprintf(`
SELECT date, average_price, "index", average_annual_salary
FROM %s
WHERE region_name = $1
ORDER BY date`, p.table)

	rows, err := p.pool.Query(ctx, query, region)
	if err != nil {
		return nil, fmt.Errorf("query series for %q: %w", region, err)
	}
	defer rows.Close()

	var records []hpi.PriceRecord
	for rows.Next() {
		rec := hpi.PriceRecord{Region: region}
		if err := rows.Scan(&rec.Date, &rec.AveragePrice, &rec.Index, &rec.Salary); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return records, nil
}

// RecordRun inserts the audit record for a completed pipeline run.
func (p *PostgresProvider) RecordRun(ctx context.Context, report hpi.RunReport) error {
	query := `
INSERT INTO ingest_runs (
	id,
	started_at,
	finished_at,
	source_sha256,
	rows_fetched,
	rows_dropped,
	rows_rejected,
	rows_loaded
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := p.pool.Exec(ctx, query,
		report.RunID,
		report.StartedAt,
		report.FinishedAt,
		report.SourceSHA256,
		report.RowsFetched,
		report.RowsDropped,
		report.RowsRejected,
		report.RowsLoaded,
	)
	if err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}
	return nil
}

// Ping verifies the pool can reach the database.
func (p *PostgresProvider) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (p *PostgresProvider) Close() error {
	if p == nil || p.pool == nil {
		return nil
	}
	p.pool.Close()
	return nil
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
