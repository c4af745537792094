// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/archive"
	"github.com/gmorse81/uk-hpi-service/internal/cache"
	"github.com/gmorse81/uk-hpi-service/internal/config"
	"github.com/gmorse81/uk-hpi-service/internal/database"
	"github.com/gmorse81/uk-hpi-service/internal/fetcher"
	"github.com/gmorse81/uk-hpi-service/internal/logging"
	"github.com/gmorse81/uk-hpi-service/internal/notify"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and handed to the commands that need it.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Fetcher  fetcher.Fetcher
	Database database.Provider
	Cache    cache.Cache
	Archive  archive.Provider
	Notifier notify.Provider
}

// New builds the App from configuration. It is the central point for service
// initialization and fails fast if any critical service cannot be reached.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	l := logging.L
	l.Info("Initializing application services")

	db, err := newDatabase(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	respCache, err := newCache(ctx, cfg, l)
	if err != nil {
		db.Close()
		return nil, err
	}

	arch, err := newArchive(ctx, cfg, l)
	if err != nil {
		db.Close()
		respCache.Close()
		return nil, err
	}

	notifier, err := newNotifier(ctx, cfg, l)
	if err != nil {
		db.Close()
		respCache.Close()
		arch.Close()
		return nil, err
	}

	f := fetcher.NewColly(fetcher.Config{
		UserAgent: cfg.Pipeline.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, l)

	l.Info("Application services initialized",
		zap.String("database", cfg.Database.Provider),
		zap.String("cache", cfg.Cache.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("notify", cfg.Notify.Provider),
	)

	return &App{
		Config:   cfg,
		Logger:   l,
		Fetcher:  f,
		Database: db,
		Cache:    respCache,
		Archive:  arch,
		Notifier: notifier,
	}, nil
}

func newDatabase(ctx context.Context, cfg config.Config, l *zap.Logger) (database.Provider, error) {
	switch cfg.Database.Provider {
	case "postgres":
		l.Info("Connecting to PostgreSQL")
		db, err := database.NewPostgres(ctx, database.PostgresConfig{
			DSN:      cfg.Database.DSN,
			Table:    cfg.Database.Table,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		return db, nil
	case "noop":
		l.Info("DATABASE_URL not set, database work will be skipped")
		return &database.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown database provider: %s", cfg.Database.Provider)
	}
}

func newCache(ctx context.Context, cfg config.Config, l *zap.Logger) (cache.Cache, error) {
	switch cfg.Cache.Provider {
	case "memory":
		return cache.NewMemory(cfg.Cache.TTL, nil), nil
	case "redis":
		l.Info("Connecting to Redis", zap.String("addr", cfg.Cache.RedisAddr))
		c, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL, l)
		if err != nil {
			return nil, fmt.Errorf("initialize cache: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache provider: %s", cfg.Cache.Provider)
	}
}

func newArchive(ctx context.Context, cfg config.Config, l *zap.Logger) (archive.Provider, error) {
	switch cfg.Archive.Provider {
	case "noop":
		return &archive.NoOpProvider{}, nil
	case "memory":
		return archive.NewMemory(), nil
	case "local":
		a, err := archive.NewLocal(cfg.Archive.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
		return a, nil
	case "gcs":
		l.Info("Using GCS archive", zap.String("bucket", cfg.Archive.GCSBucket))
		a, err := archive.NewGCS(ctx, cfg.Archive.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
}

func newNotifier(ctx context.Context, cfg config.Config, l *zap.Logger) (notify.Provider, error) {
	switch cfg.Notify.Provider {
	case "noop":
		return &notify.NoOpProvider{}, nil
	case "memory":
		return notify.NewMemory(), nil
	case "pubsub":
		l.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.Notify.TopicID))
		n, err := notify.NewPubSub(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicID, l)
		if err != nil {
			return nil, fmt.Errorf("initialize notifier: %w", err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Notify.Provider)
	}
}

// Close shuts down all services in the container. It is called by a Cobra
// hook after the command finishes.
func (a *App) Close() {
	a.Logger.Info("Shutting down application services")
	if err := a.Database.Close(); err != nil {
		a.Logger.Warn("Error closing database connection", zap.Error(err))
	}
	if err := a.Cache.Close(); err != nil {
		a.Logger.Warn("Error closing cache", zap.Error(err))
	}
	if err := a.Archive.Close(); err != nil {
		a.Logger.Warn("Error closing archive", zap.Error(err))
	}
	if err := a.Notifier.Close(); err != nil {
		a.Logger.Warn("Error closing notifier", zap.Error(err))
	}
	// Flushing stderr can legitimately fail; best effort.
	_ = a.Logger.Sync()
}
