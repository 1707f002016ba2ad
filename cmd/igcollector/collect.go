package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/sync"
)

var (
	collectTargetDate string
	collectDryRun     bool
)

// collectCmd runs one daily collection synchronously
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the daily collection across all active accounts",
	Long: `Collect the daily snapshot for every active account: profile counters,
posts published on the target date and a current metric snapshot per
post. The target date defaults to yesterday (UTC), the last complete
day. With --dry-run everything is fetched and aggregated but nothing
is written.`,
	Example: `  # Collect for yesterday
  igcollector collect

  # Collect for a specific date
  igcollector collect --date 2026-08-27

  # See what a run would save without writing
  igcollector collect --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		target := models.DateOf(time.Now().UTC().AddDate(0, 0, -1))
		if collectTargetDate != "" {
			target, err = models.ParseDate(collectTargetDate)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
		}

		ctx := signalContext()
		summary, err := a.dailyCollector(sync.NewRunState()).Run(ctx, target, sync.CollectOptions{DryRun: collectDryRun})
		if summary != nil {
			printJSON(summary)
		}
		if err != nil {
			return err
		}
		if summary.FailedAccounts > 0 {
			return fmt.Errorf("%d of %d accounts failed", summary.FailedAccounts, summary.TotalAccounts)
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectTargetDate, "date", "", "target date (YYYY-MM-DD, default yesterday UTC)")
	collectCmd.Flags().BoolVar(&collectDryRun, "dry-run", false, "fetch and aggregate but skip all writes")
	rootCmd.AddCommand(collectCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so long
// runs stop at the next pacing point
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
