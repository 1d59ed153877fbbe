package main

import (
	"github.com/spf13/cobra"

	"github.com/amishk599/jobsift/internal/model"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Trigger a daily summary now",
	Long:  "Enqueues a daily-summary run; the daemon picks it up on its next poll.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return enqueueRun(model.RunKindDailySummary)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
