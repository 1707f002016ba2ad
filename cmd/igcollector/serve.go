package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shintairiku/instagram-analysis/internal/api"
	"github.com/shintairiku/instagram-analysis/pkg/sync"
)

var servePort int

// serveCmd runs the HTTP trigger surface
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server exposing collection triggers",
	Long: `Start the HTTP server. Endpoints:

  POST /api/v1/collection/daily           start a daily collection run
  GET  /api/v1/collection/daily/status    last run status and summary
  POST /api/v1/accounts/{id}/refresh      refresh one account on demand
  GET  /healthz                           liveness check

All /api/v1 endpoints require the configured collection token, sent as
a bearer credential or in X-Collection-Token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if servePort > 0 {
			a.cfg.Server.Port = servePort
		}

		collector := a.dailyCollector(sync.NewRunState())
		syncer := a.recentSyncer(sync.NewAccountLocks())
		server := api.NewServer(&a.cfg.Server, collector, syncer, a.logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			a.logger.InfoWithFields("shutting down", map[string]interface{}{"signal": sig.String()})
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
