package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/hpi"
)

func newMockStore(t *testing.T) (*PostgresProvider, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewPostgresWithPool(mock, "uk_hpi", zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func TestReplaceAllTruncatesAndCopies(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	records := []hpi.PriceRecord{
		{
			Region:       "London",
			Date:         time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
			AveragePrice: decimal.NewFromInt(525000),
			Index:        decimal.NewFromFloat(148.2),
		},
		{
			Region:       "Wales",
			Date:         time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
			AveragePrice: decimal.NewFromInt(215000),
			Index:        decimal.NewFromFloat(131.7),
			Salary:       decimal.NewNullDecimal(decimal.NewFromInt(31000)),
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE uk_hpi").
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"uk_hpi"}, copyColumns).
		WillReturnResult(int64(len(records)))
	mock.ExpectCommit()

	n, err := store.ReplaceAll(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAllRollsBackOnCopyFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE uk_hpi").
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"uk_hpi"}, copyColumns).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := store.ReplaceAll(context.Background(), []hpi.PriceRecord{{Region: "London"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistinctRegions(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT region_name FROM uk_hpi").
		WillReturnRows(pgxmock.NewRows([]string{"region_name"}).
			AddRow("London").
			AddRow("Wales"))

	regions, err := store.DistinctRegions(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"London", "Wales"}, regions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesByRegion(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	date := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT date, average_price, "index", average_annual_salary`).
		WithArgs("London").
		WillReturnRows(pgxmock.NewRows([]string{"date", "average_price", "index", "average_annual_salary"}).
			AddRow(date, decimal.NewFromInt(525000), decimal.NewFromFloat(148.2), decimal.NullDecimal{}))

	records, err := store.SeriesByRegion(context.Background(), "London")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "London", records[0].Region)
	require.True(t, records[0].AveragePrice.Equal(decimal.NewFromInt(525000)))
	require.False(t, records[0].Salary.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesByRegionUnknownRegionIsEmpty(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT date, average_price, "index", average_annual_salary`).
		WithArgs("Atlantis").
		WillReturnRows(pgxmock.NewRows([]string{"date", "average_price", "index", "average_annual_salary"}))

	records, err := store.SeriesByRegion(context.Background(), "Atlantis")
	require.NoError(t, err)
	require.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	report := hpi.RunReport{
		RunID:        "a2f1c9a4-7a3e-4c9b-9a34-0c3fbb6f0d11",
		StartedAt:    time.Unix(1700000000, 0).UTC(),
		FinishedAt:   time.Unix(1700000060, 0).UTC(),
		SourceSHA256: "abc123",
		RowsFetched:  100,
		RowsDropped:  3,
		RowsRejected: 1,
		RowsLoaded:   96,
	}

	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs(
			report.RunID,
			report.StartedAt,
			report.FinishedAt,
			report.SourceSHA256,
			report.RowsFetched,
			report.RowsDropped,
			report.RowsRejected,
			report.RowsLoaded,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordRun(context.Background(), report))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresWithPool(mock, "uk_hpi; DROP TABLE uk_hpi", zap.NewNop())
	require.Error(t, err)
}
