package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	storageURL    string
	storageAPIKey string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igcollector",
	Short: "Instagram account and post performance data collector",
	Long: `igcollector gathers Instagram account and post performance data through
the Graph API and stores it in a PostgREST-backed data layer.

Commands cover the scheduled daily collection, on-demand account
refreshes, historical backfills with checkpoint resume, metric repair
passes and new-post detection sweeps. The serve command exposes the
collection triggers over HTTP.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .igcollector.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storageURL, "storage-url", "", "PostgREST storage base URL")
	rootCmd.PersistentFlags().StringVar(&storageAPIKey, "storage-api-key", "", "PostgREST storage API key")
}

func globalFlags() map[string]interface{} {
	return map[string]interface{}{
		"config":          configFile,
		"log-level":       logLevel,
		"storage-url":     storageURL,
		"storage-api-key": storageAPIKey,
	}
}
