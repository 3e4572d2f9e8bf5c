package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/retention-insights/internal/observability"
	"github.com/jonathan/retention-insights/internal/progress"
	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/types"
)

var logsCmd = &cobra.Command{
	Use:   "logs <run-id>",
	Short: "Show the stage log of a run",
	Long: `Prints the stage log of a run from the configured SQLite or PostgreSQL store.
With --follow the log is re-read every 1.5s until the run completes or fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

var logsFollow bool

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep polling until the run reaches a terminal stage")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st, closeStore, err := openPersistentStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	return showLogs(ctx, os.Stdout, st, runID, logsFollow)
}

// showLogs prints the run's stage log once, or on every change while following
func showLogs(ctx context.Context, out io.Writer, st store.Store, runID uuid.UUID, follow bool) error {
	printer := observability.NewPrinter(out)
	if !follow {
		logs, err := st.ListStageLogs(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to list stage logs: %w", err)
		}
		if len(logs) == 0 {
			return fmt.Errorf("no stage logs for run %s", runID)
		}
		printer.PrintStageLogs(logs)
		outcome, _ := progress.RunOutcome(logs)
		fmt.Fprintf(out, "Run %s: %s\n", runID, outcome)
		return nil
	}

	printed := 0
	outcome, err := progress.Follow(ctx, st, runID, progress.DefaultPollInterval, func(logs []types.PipelineStageLog) {
		// entries are append-only; updates to already printed entries show up in the summary
		if printed < len(logs) {
			printer.PrintStageLogs(logs[printed:])
			printed = len(logs)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run %s: %s\n", runID, outcome)
	if outcome == progress.OutcomeFailed {
		return fmt.Errorf("run %s failed", runID)
	}
	return nil
}
