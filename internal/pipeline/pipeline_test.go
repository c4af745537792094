package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/archive"
	"github.com/gmorse81/uk-hpi-service/internal/config"
	"github.com/gmorse81/uk-hpi-service/internal/fetcher"
	"github.com/gmorse81/uk-hpi-service/internal/hpi"
	"github.com/gmorse81/uk-hpi-service/internal/notify"
)

type fakeFetcher struct {
	payloads map[string][]byte
	errs     map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (fetcher.Payload, error) {
	if err, ok := f.errs[url]; ok {
		return fetcher.Payload{}, err
	}
	body, ok := f.payloads[url]
	if !ok {
		return fetcher.Payload{}, errors.New("unexpected url: " + url)
	}
	sum := sha256.Sum256(body)
	return fetcher.Payload{
		URL:        url,
		StatusCode: 200,
		Body:       body,
		SHA256:     hex.EncodeToString(sum[:]),
	}, nil
}

type fakeDB struct {
	mu       sync.Mutex
	datasets [][]hpi.PriceRecord
	runs     []hpi.RunReport
	loadErr  error
}

func (db *fakeDB) ReplaceAll(_ context.Context, records []hpi.PriceRecord) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.loadErr != nil {
		return 0, db.loadErr
	}
	db.datasets = append(db.datasets, append([]hpi.PriceRecord(nil), records...))
	return int64(len(records)), nil
}

func (db *fakeDB) DistinctRegions(_ context.Context) ([]string, error) { return nil, nil }

func (db *fakeDB) SeriesByRegion(_ context.Context, _ string) ([]hpi.PriceRecord, error) {
	return nil, nil
}

func (db *fakeDB) RecordRun(_ context.Context, report hpi.RunReport) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.runs = append(db.runs, report)
	return nil
}

func (db *fakeDB) Ping(_ context.Context) error { return nil }
func (db *fakeDB) Close() error                 { return nil }

const (
	datasetURL = "https://example.com/hpi.csv"
	salaryURL  = "https://example.com/salaries.csv"
)

const pipelineCSV = `Date,RegionName,AveragePrice,Index
1968-04-01,London,3035.46,2.5
1968-04-01,Wales,2844.98,2.19
bad-date,London,3100.00,2.55
1968-05-01,,2900.00,2.2
`

func newTestPipeline(f *fakeFetcher, db *fakeDB, salary bool) (*Pipeline, *archive.Memory, *notify.MemoryProvider) {
	cfg := config.Config{
		Pipeline: config.PipelineConfig{DatasetURL: datasetURL, TimeoutSeconds: 5},
		Archive:  config.ArchiveConfig{Prefix: "hpi"},
	}
	if salary {
		cfg.Pipeline.SalaryURL = salaryURL
	}
	arch := archive.NewMemory()
	notifier := notify.NewMemory()
	p := New(cfg, f, db, arch, notifier, zap.NewNop())
	p.newRunID = func() string { return "run-fixed" }
	return p, arch, notifier
}

func TestRunLoadsValidRows(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{payloads: map[string][]byte{datasetURL: []byte(pipelineCSV)}}
	db := &fakeDB{}
	p, arch, notifier := newTestPipeline(f, db, false)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, report.RowsFetched)
	require.Equal(t, 2, report.RowsDropped)
	require.Equal(t, 0, report.RowsRejected)
	require.Equal(t, 2, report.RowsLoaded)
	require.Len(t, report.SourceSHA256, 64)

	require.Len(t, db.datasets, 1)
	require.Len(t, db.runs, 1)
	require.Equal(t, []string{"run-fixed"}, notifier.Published())

	key := "hpi/" + time.Now().Format("2006/01/02") + "/uk-hpi-run-fixed.csv"
	_, ok := arch.Get(key)
	require.True(t, ok, "raw download should be archived under %s", key)
}

func TestRunIsIdempotentInEffect(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{payloads: map[string][]byte{datasetURL: []byte(pipelineCSV)}}
	db := &fakeDB{}
	p, _, _ := newTestPipeline(f, db, false)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, first.RowsLoaded, second.RowsLoaded)
	require.Len(t, db.datasets, 2)
	require.Len(t, db.datasets[0], len(db.datasets[1]))
}

func TestRunAppliesSalaries(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{payloads: map[string][]byte{
		datasetURL: []byte(pipelineCSV),
		salaryURL:  []byte("RegionName,AverageAnnualSalary\nLondon,44370\n"),
	}}
	db := &fakeDB{}
	p, _, _ := newTestPipeline(f, db, true)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, db.datasets, 1)
	var london, wales hpi.PriceRecord
	for _, rec := range db.datasets[0] {
		switch rec.Region {
		case "London":
			london = rec
		case "Wales":
			wales = rec
		}
	}
	require.True(t, london.Salary.Valid)
	require.True(t, london.Salary.Decimal.Equal(decimal.NewFromInt(44370)))
	require.False(t, wales.Salary.Valid)
}

func TestRunSalaryFetchFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{
		payloads: map[string][]byte{datasetURL: []byte(pipelineCSV)},
		errs:     map[string]error{salaryURL: errors.New("connection refused")},
	}
	db := &fakeDB{}
	p, _, _ := newTestPipeline(f, db, true)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.RowsLoaded)
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{errs: map[string]error{datasetURL: errors.New("connection refused")}}
	db := &fakeDB{}
	p, _, _ := newTestPipeline(f, db, false)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.Empty(t, db.datasets)
}

func TestRunRefusesToReplaceWithEmptyDataset(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{payloads: map[string][]byte{
		datasetURL: []byte("Date,RegionName,AveragePrice,Index\nbad,London,1,1\n"),
	}}
	db := &fakeDB{}
	p, _, _ := newTestPipeline(f, db, false)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.Empty(t, db.datasets)
}

func TestRunLoadFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{payloads: map[string][]byte{datasetURL: []byte(pipelineCSV)}}
	db := &fakeDB{loadErr: errors.New("connection reset")}
	p, _, _ := newTestPipeline(f, db, false)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	require.Empty(t, db.runs)
}
