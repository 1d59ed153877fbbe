package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counters and in-flight runs",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	ctx := context.Background()

	stats, err := sqlStore.RunStats(ctx)
	if err != nil {
		return fmt.Errorf("reading queue stats: %w", err)
	}
	fmt.Printf("Queue: %d queued, %d active, %d completed, %d failed\n",
		stats.Queued, stats.Active, stats.Completed, stats.Failed)

	for _, kind := range []model.RunKind{model.RunKindAlertScan, model.RunKindDailySummary} {
		run, err := sqlStore.InFlightRun(ctx, kind)
		if err != nil {
			return fmt.Errorf("reading %s run: %w", kind, err)
		}
		if run == nil {
			fmt.Printf("%-14s idle\n", kind)
			continue
		}
		line := fmt.Sprintf("%-14s %s (attempt %d, trigger %s)", kind, run.Status, run.Attempts, run.Trigger)
		if run.Status == model.RunStatusActive {
			line += fmt.Sprintf(" — %d%% %s", run.Progress, run.Step)
		}
		fmt.Println(line)
	}
	return nil
}
