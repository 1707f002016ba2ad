package main

import (
	"time"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/ratelimit"
	"github.com/shintairiku/instagram-analysis/pkg/repository"
	"github.com/shintairiku/instagram-analysis/pkg/storage"
	"github.com/shintairiku/instagram-analysis/pkg/sync"
)

// graphCallBudget bounds Graph API calls in a sliding hour, below the
// platform's per-user limit so bursts never trip it.
const (
	graphCallBudget = 180
	graphCallWindow = time.Hour
)

// app holds the wired components every command starts from
type app struct {
	cfg        *config.Config
	logger     logger.Logger
	accounts   *repository.AccountRepository
	posts      *repository.PostRepository
	metrics    *repository.PostMetricRepository
	dailyStats *repository.DailyStatsRepository
	graph      *graph.Client
}

// newApp loads configuration and wires the storage and Graph API
// layers shared by all commands
func newApp() (*app, error) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, err
	}

	store := storage.NewClient(&cfg.Storage, log)
	limiter := ratelimit.NewSlidingWindow(graphCallBudget, graphCallWindow)

	return &app{
		cfg:        cfg,
		logger:     log,
		accounts:   repository.NewAccountRepository(store, log),
		posts:      repository.NewPostRepository(store, cfg.Collection.CaptionLimit, log),
		metrics:    repository.NewPostMetricRepository(store, log),
		dailyStats: repository.NewDailyStatsRepository(store, log),
		graph:      graph.NewClient(&cfg.Graph, limiter, log),
	}, nil
}

func (a *app) dailyCollector(state *sync.RunState) *sync.DailyCollector {
	return sync.NewDailyCollector(a.accounts, a.posts, a.metrics, a.dailyStats, a.graph, state, &a.cfg.Collection, a.logger)
}

func (a *app) recentSyncer(locks *sync.AccountLocks) *sync.RecentPostSyncer {
	return sync.NewRecentPostSyncer(a.accounts, a.posts, a.metrics, a.graph, locks, &a.cfg.Sync, &a.cfg.Collection, a.logger)
}

func (a *app) historicalCollector() *sync.HistoricalCollector {
	return sync.NewHistoricalCollector(a.accounts, a.posts, a.metrics, a.graph, &a.cfg.Collection, a.cfg.Storage.CheckpointDir, a.logger)
}

func (a *app) postDetector() *sync.PostDetector {
	watermarks := sync.NewWatermarkStore(a.cfg.Detector.WatermarkFile)
	return sync.NewPostDetector(a.accounts, a.posts, a.metrics, a.graph, watermarks, &a.cfg.Detector, &a.cfg.Collection, a.logger)
}
