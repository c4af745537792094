package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/app"
	"github.com/gmorse81/uk-hpi-service/internal/archive"
	"github.com/gmorse81/uk-hpi-service/internal/cache"
	"github.com/gmorse81/uk-hpi-service/internal/config"
	"github.com/gmorse81/uk-hpi-service/internal/database"
	"github.com/gmorse81/uk-hpi-service/internal/notify"
)

func noopConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:                  8000,
			RequestTimeoutSeconds: 30,
		},
		Pipeline: config.PipelineConfig{
			DatasetURL:     "https://example.com/hpi.csv",
			TimeoutSeconds: 5,
		},
		Database: config.DatabaseConfig{Provider: "noop"},
		Cache:    config.CacheConfig{Provider: "memory", TTL: time.Minute},
		Archive:  config.ArchiveConfig{Provider: "noop"},
		Notify:   config.NotifyConfig{Provider: "noop"},
	}
}

func TestNewWithNoopProviders(t *testing.T) {
	a, err := app.New(context.Background(), noopConfig())
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Fetcher)
	assert.IsType(t, &database.NoOpProvider{}, a.Database)
	assert.IsType(t, &cache.Memory{}, a.Cache)
	assert.IsType(t, &archive.NoOpProvider{}, a.Archive)
	assert.IsType(t, &notify.NoOpProvider{}, a.Notifier)

	a.Close()
}

func TestNewMemoryProviders(t *testing.T) {
	cfg := noopConfig()
	cfg.Archive.Provider = "memory"
	cfg.Notify.Provider = "memory"

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &archive.Memory{}, a.Archive)
	assert.IsType(t, &notify.MemoryProvider{}, a.Notifier)
	a.Close()
}

func TestNewLocalArchive(t *testing.T) {
	cfg := noopConfig()
	cfg.Archive.Provider = "local"
	cfg.Archive.BaseDir = t.TempDir()

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &archive.Local{}, a.Archive)
	a.Close()
}

func TestNewUnknownProviders(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "database", mutate: func(c *config.Config) { c.Database.Provider = "mystery" }},
		{name: "cache", mutate: func(c *config.Config) { c.Cache.Provider = "mystery" }},
		{name: "archive", mutate: func(c *config.Config) { c.Archive.Provider = "mystery" }},
		{name: "notify", mutate: func(c *config.Config) { c.Notify.Provider = "mystery" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := noopConfig()
			tt.mutate(&cfg)
			_, err := app.New(context.Background(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "mystery")
		})
	}
}

type closeTrackingDB struct {
	database.NoOpProvider
	closed bool
	err    error
}

func (c *closeTrackingDB) Close() error {
	c.closed = true
	return c.err
}

func TestCloseShutsDownServices(t *testing.T) {
	db := &closeTrackingDB{}
	a := &app.App{
		Logger:   zap.NewNop(),
		Database: db,
		Cache:    cache.NewMemory(time.Minute, nil),
		Archive:  &archive.NoOpProvider{},
		Notifier: notify.NewMemory(),
	}

	a.Close()
	assert.True(t, db.closed)
}

func TestCloseToleratesErrors(t *testing.T) {
	db := &closeTrackingDB{err: errors.New("already closed")}
	a := &app.App{
		Logger:   zap.NewNop(),
		Database: db,
		Cache:    cache.NewMemory(time.Minute, nil),
		Archive:  &archive.NoOpProvider{},
		Notifier: &notify.NoOpProvider{},
	}

	a.Close()
	assert.True(t, db.closed)
}
