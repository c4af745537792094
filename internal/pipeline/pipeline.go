package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/archive"
	"github.com/gmorse81/uk-hpi-service/internal/clock"
	"github.com/gmorse81/uk-hpi-service/internal/config"
	"github.com/gmorse81/uk-hpi-service/internal/database"
	"github.com/gmorse81/uk-hpi-service/internal/fetcher"
	"github.com/gmorse81/uk-hpi-service/internal/hpi"
	"github.com/gmorse81/uk-hpi-service/internal/notify"
	"github.com/gmorse81/uk-hpi-service/internal/telemetry"
)

// Pipeline runs the linear batch flow: fetch the source CSVs, clean and
// validate the rows, replace the dataset in the store, then record and
// announce the run.
type Pipeline struct {
	cfg       config.Config
	fetcher   fetcher.Fetcher
	cleaner   *Cleaner
	validator *Validator
	db        database.Provider
	archive   archive.Provider
	notifier  notify.Provider
	logger    *zap.Logger
	clock     clock.Clock
	newRunID  func() string
}

// New wires a Pipeline from the shared application services.
func New(
	cfg config.Config,
	f fetcher.Fetcher,
	db database.Provider,
	arch archive.Provider,
	notifier notify.Provider,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   f,
		cleaner:   NewCleaner(logger),
		validator: NewValidator(logger),
		db:        db,
		archive:   arch,
		notifier:  notifier,
		logger:    logger,
		clock:     clock.NewSystem(),
		newRunID:  uuid.NewString,
	}
}

// Run executes one pipeline run. Row-level failures are dropped and counted;
// fetch, header, and load failures are fatal and returned.
func (p *Pipeline) Run(ctx context.Context) (hpi.RunReport, error) {
	started := p.clock.Now()
	runID := p.newRunID()
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("Starting pipeline run", zap.String("dataset_url", p.cfg.Pipeline.DatasetURL))

	payload, err := p.fetcher.Fetch(ctx, p.cfg.Pipeline.DatasetURL)
	if err != nil {
		return p.fail(started, fmt.Errorf("fetch dataset: %w", err))
	}

	p.archiveRaw(ctx, log, started, runID, payload)

	records, cleanReport, err := p.cleaner.Clean(payload.Body)
	if err != nil {
		return p.fail(started, fmt.Errorf("clean dataset: %w", err))
	}
	telemetry.ObservePipelineRows("clean", "kept", cleanReport.RowsKept)
	telemetry.ObservePipelineRows("clean", "dropped", cleanReport.Dropped())

	valid, rejected := p.validator.ValidateAll(records)
	telemetry.ObservePipelineRows("validate", "kept", len(valid))
	telemetry.ObservePipelineRows("validate", "dropped", rejected)

	if len(valid) == 0 {
		return p.fail(started, fmt.Errorf("no valid rows in dataset, refusing to replace table"))
	}

	p.applySalaries(ctx, log, valid)

	loaded, err := p.db.ReplaceAll(ctx, valid)
	if err != nil {
		return p.fail(started, fmt.Errorf("load dataset: %w", err))
	}
	telemetry.ObservePipelineRows("load", "kept", int(loaded))

	finished := p.clock.Now()
	report := hpi.RunReport{
		RunID:        runID,
		StartedAt:    started,
		FinishedAt:   finished,
		SourceSHA256: payload.SHA256,
		RowsFetched:  cleanReport.RowsIn,
		RowsDropped:  cleanReport.Dropped(),
		RowsRejected: rejected,
		RowsLoaded:   int(loaded),
	}

	// Audit and notification are best effort; the data is already live.
	if err := p.db.RecordRun(ctx, report); err != nil {
		log.Warn("Failed to record ingest run", zap.Error(err))
	}
	if err := p.notifier.Publish(ctx, runID); err != nil {
		log.Warn("Failed to publish run notification", zap.Error(err))
	}

	telemetry.ObservePipelineRun("succeeded", finished.Sub(started))
	log.Info("Pipeline run complete",
		zap.Int("rows_fetched", report.RowsFetched),
		zap.Int("rows_dropped", report.RowsDropped),
		zap.Int("rows_rejected", report.RowsRejected),
		zap.Int("rows_loaded", report.RowsLoaded),
	)
	return report, nil
}

func (p *Pipeline) fail(started time.Time, err error) (hpi.RunReport, error) {
	telemetry.ObservePipelineRun("failed", p.clock.Now().Sub(started))
	p.logger.Error("Pipeline run failed", zap.Error(err))
	return hpi.RunReport{}, err
}

// archiveRaw stores the raw download. Best effort: an archive failure never
// fails the run.
func (p *Pipeline) archiveRaw(ctx context.Context, log *zap.Logger, started time.Time, runID string, payload fetcher.Payload) {
	key := fmt.Sprintf("%s/%s/uk-hpi-%s.csv", p.cfg.Archive.Prefix, started.Format("2006/01/02"), runID)
	uri, err := p.archive.Put(ctx, key, payload.Body)
	if err != nil {
		log.Warn("Failed to archive raw dataset", zap.Error(err))
		return
	}
	log.Info("Raw dataset archived", zap.String("uri", uri), zap.String("sha256", payload.SHA256))
}

func (p *Pipeline) applySalaries(ctx context.Context, log *zap.Logger, records []hpi.PriceRecord) {
	if p.cfg.Pipeline.SalaryURL == "" {
		return
	}
	payload, err := p.fetcher.Fetch(ctx, p.cfg.Pipeline.SalaryURL)
	if err != nil {
		log.Warn("Salary sheet fetch failed, loading without salaries", zap.Error(err))
		return
	}
	salaries, report, err := p.cleaner.CleanSalaries(payload.Body)
	if err != nil {
		log.Warn("Salary sheet unusable, loading without salaries", zap.Error(err))
		return
	}
	if report.Dropped() > 0 {
		log.Warn("Salary sheet rows dropped", zap.Int("dropped", report.Dropped()))
	}
	matched := 0
	for i := range records {
		if salary, ok := salaries[records[i].Region]; ok {
			records[i].Salary = decimal.NewNullDecimal(salary)
			matched++
		}
	}
	log.Info("Salaries applied", zap.Int("regions_matched", matched))
}
