package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/browse"
	"github.com/amishk599/jobsift/internal/store"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Browse stored postings interactively (TUI)",
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 200, "maximum postings to load")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
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

	postings, err := sqlStore.ListByRelevance(context.Background(), jobsLimit)
	if err != nil {
		return fmt.Errorf("loading postings: %w", err)
	}
	if len(postings) == 0 {
		fmt.Println("No postings stored yet. Run a scan first.")
		return nil
	}

	return browse.Run(postings)
}
