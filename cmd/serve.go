package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/api"
	"github.com/gmorse81/uk-hpi-service/internal/pipeline"
)

const shutdownGrace = 10 * time.Second

// newServeCmd creates the 'serve' subcommand. It optionally runs one ingest
// pass, then serves the query API until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the house price query API",
		Long: `Starts the HTTP server exposing the regions and per-region data
endpoints. Unless disabled, an ingest pass runs first so the server starts
with fresh data; an ingest failure is logged and the server starts anyway.`,

		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.Config.Server.IngestOnStart {
		p := pipeline.New(a.Config, a.Fetcher, a.Database, a.Archive, a.Notifier, a.Logger)
		if _, err := p.Run(ctx); err != nil {
			// Stale data beats no service; the next deploy or manual
			// ingest can repair it.
			a.Logger.Error("Startup ingest failed, serving existing data", zap.Error(err))
		}
	}

	server := api.NewServer(a.Database, a.Cache, a.Config, a.Logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("Shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
