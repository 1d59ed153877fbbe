package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/metrics"
	"github.com/amishk599/jobsift/internal/model"
	"github.com/amishk599/jobsift/internal/notifier"
	"github.com/amishk599/jobsift/internal/queue"
	"github.com/amishk599/jobsift/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Trigger an inbox scan now",
	Long:  "Enqueues a high-priority alert-scan run; the daemon picks it up on its next poll.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return enqueueRun(model.RunKindAlertScan)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// enqueueRun writes a manual run into the shared run queue. It goes through
// the same single-flight gate as cron ticks, so a run already underway turns
// the command into a polite no-op.
func enqueueRun(kind model.RunKind) error {
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

	q := queue.New(queue.Config{}, sqlStore, notifier.NewLogNotifier(logger), metrics.NewNoopSink(), logger)

	runID, err := q.Enqueue(context.Background(), kind, "", model.TriggerManual, model.PriorityHigh)
	if errors.Is(err, queue.ErrAlreadyInFlight) {
		fmt.Printf("A %s run is already queued or active (%s); not enqueueing another.\n", kind, runID)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Enqueued %s run %s. Start the daemon if it is not already running.\n", kind, runID)
	return nil
}
