// Package database defines the interface for persisting and querying the
// house price dataset. The interface decouples the pipeline and the API from
// a specific backend, so tests and DATABASE_URL-less runs use a no-op.
package database

import (
	"context"
	"errors"

	"github.com/gmorse81/uk-hpi-service/internal/hpi"
)

// ErrNotConfigured is returned by the no-op provider; the API maps it to 503.
var ErrNotConfigured = errors.New("database not configured")

// Provider is the common interface for the dataset store.
type Provider interface {
	// ReplaceAll replaces the entire dataset with the given records in one
	// transaction. Returns the number of rows loaded.
	ReplaceAll(ctx context.Context, records []hpi.PriceRecord) (int64, error)

	// DistinctRegions returns the ordered, duplicate-free set of region names.
	DistinctRegions(ctx context.Context) ([]string, error)

	// SeriesByRegion returns the time series for one region ordered by date
	// ascending. An unknown region yields an empty slice, not an error.
	SeriesByRegion(ctx context.Context, region string) ([]hpi.PriceRecord, error)

	// RecordRun persists the audit record for a completed pipeline run.
	RecordRun(ctx context.Context, report hpi.RunReport) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}

// NoOpProvider stands in when DATABASE_URL is not set. Writes are discarded
// and reads report ErrNotConfigured.
type NoOpProvider struct{}

// ReplaceAll discards the records.
func (*NoOpProvider) ReplaceAll(_ context.Context, _ []hpi.PriceRecord) (int64, error) {
	return 0, nil
}

// DistinctRegions reports that no database is configured.
func (*NoOpProvider) DistinctRegions(_ context.Context) ([]string, error) {
	return nil, ErrNotConfigured
}

// SeriesByRegion reports that no database is configured.
func (*NoOpProvider) SeriesByRegion(_ context.Context, _ string) ([]hpi.PriceRecord, error) {
	return nil, ErrNotConfigured
}

// RecordRun discards the report.
func (*NoOpProvider) RecordRun(_ context.Context, _ hpi.RunReport) error { return nil }

// Ping reports that no database is configured.
func (*NoOpProvider) Ping(_ context.Context) error { return ErrNotConfigured }

// Close does nothing.
func (*NoOpProvider) Close() error { return nil }
