package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/pipeline"
)

// newIngestCmd creates the 'ingest' subcommand. It runs the ETL pipeline once
// and exits, which makes it suitable for cron or manual refreshes.
func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch, clean, and load the house price dataset once",
		Long: `Downloads the UK House Price Index CSV, cleans and validates the
rows, and replaces the contents of the database table. When DATABASE_URL is
not set the cleaned rows are discarded after validation.`,

		RunE: runIngestCommand,
	}
}

func runIngestCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	p := pipeline.New(a.Config, a.Fetcher, a.Database, a.Archive, a.Notifier, a.Logger)
	report, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	a.Logger.Info("Ingest finished",
		zap.String("run_id", report.RunID),
		zap.Int("rows_loaded", report.RowsLoaded),
	)
	return nil
}
