package main

import (
	"github.com/spf13/cobra"

	"github.com/shintairiku/instagram-analysis/pkg/sync"
)

var detectAccounts []string

// detectCmd sweeps accounts for newly published posts
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Sweep accounts for posts published since the last sweep",
	Long: `Check each account for posts newer than its stored watermark and save
any found with an initial metric snapshot. Accounts without a
watermark fall back to a fixed lookback window. The watermark file
persists between runs, so the command suits a short cron interval.`,
	Example: `  # Sweep all active accounts
  igcollector detect

  # Sweep specific accounts only
  igcollector detect --account acc-123 --account acc-456`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		result, err := a.postDetector().Detect(signalContext(), sync.DetectOptions{
			TargetAccounts: detectAccounts,
		})
		if result != nil {
			printJSON(result)
		}
		return err
	},
}

func init() {
	detectCmd.Flags().StringArrayVar(&detectAccounts, "account", nil, "account id to sweep (repeatable, default all active)")
	rootCmd.AddCommand(detectCmd)
}
