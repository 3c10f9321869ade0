package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/app"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/config"
)

var runFlags struct {
	retentionOnly bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one archival run",
	Long: `Execute one archival run: sync new recordings into the destination,
then delete provider-side recordings past the retention window.

Examples:
  # Sync then retention (default)
  archiver run --config config.yaml

  # Retention only
  archiver run --retention-only

Exit status is zero on graceful completion even when individual recordings
or files failed; non-zero only on unrecoverable top-level failures.`,
	RunE: runArchiver,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.retentionOnly, "retention-only", false, "skip sync and only run retention deletion")
}

func runArchiver(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger.With("runId", uuid.NewString()))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	// RunE surfaces the error through cobra, which exits non-zero.
	return application.Run(ctx, runFlags.retentionOnly)
}
