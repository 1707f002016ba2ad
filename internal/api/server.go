// Package api exposes the HTTP trigger surface: endpoints to start the
// daily collection, read its status and refresh a single account on
// demand. It is a thin layer over pkg/sync; all domain behavior lives
// there.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/sync"
)

// DailyCollector is the slice of the daily collector the server needs
type DailyCollector interface {
	Start(ctx context.Context, target models.Date, opts sync.CollectOptions) (string, error)
	Status() sync.StateSnapshot
}

// AccountSyncer refreshes one account on demand
type AccountSyncer interface {
	Sync(ctx context.Context, accountID string, opts sync.SyncOptions) (*sync.RecentSyncResult, error)
}

// Server wires the trigger endpoints onto a chi router
type Server struct {
	cfg       *config.ServerConfig
	collector DailyCollector
	syncer    AccountSyncer
	logger    logger.Logger
	http      *http.Server
}

func NewServer(cfg *config.ServerConfig, collector DailyCollector, syncer AccountSyncer, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{
		cfg:       cfg,
		collector: collector,
		syncer:    syncer,
		logger:    log,
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router builds the route tree. Exposed separately so tests can drive
// it through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/collection/daily", s.handleTriggerDaily)
		r.Get("/collection/daily/status", s.handleDailyStatus)
		r.Post("/accounts/{accountID}/refresh", s.handleRefreshAccount)
	})

	return r
}

// ListenAndServe blocks until the server stops
func (s *Server) ListenAndServe() error {
	s.logger.InfoWithFields("http server listening", map[string]interface{}{
		"addr": s.http.Addr,
	})
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.InfoWithFields("request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
	})
}
