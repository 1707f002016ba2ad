package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/sync"
)

var (
	backfillStartDate string
	backfillEndDate   string
	backfillMaxPosts  int
)

// backfillCmd collects an account's historical posts
var backfillCmd = &cobra.Command{
	Use:   "backfill <account-id>",
	Short: "Collect an account's historical posts and metrics",
	Long: `Walk the account's complete media history, saving posts and current
metric snapshots in paced chunks. Progress is checkpointed; rerunning
after an interruption resumes where the previous run stopped, as long
as the date range is the same.`,
	Example: `  # Backfill everything
  igcollector backfill acc-123

  # Backfill one quarter
  igcollector backfill acc-123 --start 2026-01-01 --end 2026-03-31`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		opts := sync.BackfillOptions{MaxPosts: backfillMaxPosts}
		if backfillStartDate != "" {
			start, err := models.ParseDate(backfillStartDate)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			opts.StartDate = &start
		}
		if backfillEndDate != "" {
			end, err := models.ParseDate(backfillEndDate)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			opts.EndDate = &end
		}

		result, err := a.historicalCollector().CollectPosts(signalContext(), args[0], opts)
		if result != nil {
			printJSON(result)
		}
		return err
	},
}

// missingMetricsCmd repairs posts that never got a metric row
var missingMetricsCmd = &cobra.Command{
	Use:   "missing-metrics <account-id>",
	Short: "Fetch metric snapshots for posts that have none",
	Long: `Find posts saved in the lookback window that have no metric rows at
all and fetch a current snapshot for each. Useful after a backfill
that was interrupted between saving posts and saving metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		result, err := a.historicalCollector().CollectMissingMetrics(signalContext(), args[0], missingMetricsDaysBack)
		if result != nil {
			printJSON(result)
		}
		return err
	},
}

var missingMetricsDaysBack int

func init() {
	backfillCmd.Flags().StringVar(&backfillStartDate, "start", "", "earliest post date to include (YYYY-MM-DD)")
	backfillCmd.Flags().StringVar(&backfillEndDate, "end", "", "latest post date to include (YYYY-MM-DD)")
	backfillCmd.Flags().IntVar(&backfillMaxPosts, "max-posts", 0, "cap on posts to process (0 = no cap)")
	rootCmd.AddCommand(backfillCmd)

	missingMetricsCmd.Flags().IntVar(&missingMetricsDaysBack, "days-back", 30, "lookback window in days")
	rootCmd.AddCommand(missingMetricsCmd)
}
