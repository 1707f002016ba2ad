package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shintairiku/instagram-analysis/pkg/aggregator"
	"github.com/shintairiku/instagram-analysis/pkg/config"
	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/retry"
)

// DailyCollector runs the scheduled daily collection across all active
// accounts. Accounts are processed sequentially with pacing between
// them; one account failing is recorded and the run moves on.
type DailyCollector struct {
	accounts   AccountStore
	posts      PostStore
	metrics    MetricStore
	dailyStats DailyStatStore
	graph      GraphClient
	state      *RunState
	cfg        *config.CollectionConfig
	logger     logger.Logger
	now        func() time.Time
}

// NewDailyCollector creates a DailyCollector guarded by state
func NewDailyCollector(
	accounts AccountStore,
	posts PostStore,
	metrics MetricStore,
	dailyStats DailyStatStore,
	graphClient GraphClient,
	state *RunState,
	cfg *config.CollectionConfig,
	log logger.Logger,
) *DailyCollector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DailyCollector{
		accounts:   accounts,
		posts:      posts,
		metrics:    metrics,
		dailyStats: dailyStats,
		graph:      graphClient,
		state:      state,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

// CollectOptions tune a daily collection run. A dry run walks the
// full fetch and aggregation pipeline but skips every write, still
// reporting what would have been saved.
type CollectOptions struct {
	DryRun bool
}

// Status returns the current run state snapshot
func (c *DailyCollector) Status() StateSnapshot {
	return c.state.Snapshot()
}

// Start acquires the run slot and launches the collection in the
// background. The conflict check happens synchronously so a caller
// losing the race learns it immediately.
func (c *DailyCollector) Start(ctx context.Context, target models.Date, opts CollectOptions) (string, error) {
	runID := uuid.NewString()
	if err := c.state.TryAcquire(runID, target); err != nil {
		return "", err
	}

	go func() {
		summary, err := c.run(ctx, runID, target, opts)
		c.state.Release(summary, err)
	}()

	return runID, nil
}

// Run executes the collection synchronously, used by the CLI
func (c *DailyCollector) Run(ctx context.Context, target models.Date, opts CollectOptions) (*DailySummary, error) {
	runID := uuid.NewString()
	if err := c.state.TryAcquire(runID, target); err != nil {
		return nil, err
	}

	summary, err := c.run(ctx, runID, target, opts)
	c.state.Release(summary, err)
	return summary, err
}

func (c *DailyCollector) run(ctx context.Context, runID string, target models.Date, opts CollectOptions) (*DailySummary, error) {
	startedAt := c.now().UTC()
	log := c.logger.WithFields(map[string]interface{}{
		"run_id":      runID,
		"target_date": target.String(),
		"dry_run":     opts.DryRun,
	})
	log.Info("daily collection started")

	accounts, err := c.accounts.GetActiveAccounts(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list active accounts")
		return nil, err
	}

	summary := &DailySummary{
		RunID:         runID,
		TargetDate:    target,
		DryRun:        opts.DryRun,
		TotalAccounts: len(accounts),
		StartedAt:     startedAt,
	}

	for i, account := range accounts {
		if i > 0 {
			if err := retry.Wait(ctx, c.cfg.AccountPause); err != nil {
				return c.finish(summary, log), err
			}
		}

		result := c.collectAccount(ctx, account, target, opts.DryRun)
		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.SuccessfulAccounts++
		} else {
			summary.FailedAccounts++
		}

		if ctx.Err() != nil {
			return c.finish(summary, log), ctx.Err()
		}
	}

	return c.finish(summary, log), nil
}

func (c *DailyCollector) finish(summary *DailySummary, log logger.Logger) *DailySummary {
	summary.CompletedAt = c.now().UTC()
	summary.DurationSeconds = summary.CompletedAt.Sub(summary.StartedAt).Seconds()
	log.InfoWithFields("daily collection finished", map[string]interface{}{
		"total":      summary.TotalAccounts,
		"successful": summary.SuccessfulAccounts,
		"failed":     summary.FailedAccounts,
		"duration":   summary.DurationSeconds,
	})
	return summary
}

// collectAccount gathers one account's daily snapshot, posts and post
// metrics. The access token is validated before any other API call so
// a revoked token fails the account in one request. Posts are saved
// before any metrics so a metrics failure never leaves a metric row
// without its post. A dry run fetches and aggregates everything but
// writes nothing.
func (c *DailyCollector) collectAccount(ctx context.Context, account models.Account, target models.Date, dryRun bool) CollectionResult {
	log := c.logger.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"username":   account.Username,
	})

	result := CollectionResult{
		AccountID:       account.ID,
		InstagramUserID: account.InstagramUserID,
		Username:        account.Username,
		CollectedAt:     c.now().UTC(),
	}

	if _, err := c.graph.ValidateAccessToken(ctx, account.AccessToken); err != nil {
		log.WithError(err).Error("access token validation failed")
		result.ErrorMessage = err.Error()
		return result
	}

	details, err := c.graph.AccountDetailsWithFallback(ctx, account.InstagramUserID, account.AccessToken)
	if err != nil {
		log.WithError(err).Error("account details fetch failed")
		result.ErrorMessage = err.Error()
		return result
	}

	// restricted accounts report zero counters on the profile; account
	// insights still carry follower_count, so fetch them as a backstop
	accountInsights, err := c.graph.GetInsightsMetrics(ctx, account.InstagramUserID, account.AccessToken, graph.AccountInsightMetrics, "day")
	if err != nil {
		log.WithError(err).Warn("account insights fetch failed")
		accountInsights = map[string]int64{}
	}

	media, err := c.graph.GetPostsSince(ctx, account.InstagramUserID, account.AccessToken, target.Time, 0)
	if err != nil {
		log.WithError(err).Error("posts fetch failed")
		result.ErrorMessage = err.Error()
		return result
	}
	dayPosts := aggregator.PostsOnDate(media, target)

	data := &DataSummary{}

	stat := aggregator.BuildDailyStat(account.ID, target, details, accountInsights, dayPosts)
	if !dryRun {
		if _, err := c.dailyStats.Upsert(ctx, stat); err != nil {
			log.WithError(err).Error("daily stat save failed")
			result.ErrorMessage = err.Error()
			return result
		}
	}
	data.DailyStatSaved = true

	// phase one: post rows
	saved := make([]savedPost, 0, len(dayPosts))
	for _, m := range dayPosts {
		row := postFromMedia(account.ID, m)
		stored := &row
		if !dryRun {
			stored, err = c.posts.Upsert(ctx, row)
			if err != nil {
				log.WithError(err).WithField("instagram_post_id", m.ID).Warn("post save failed")
				continue
			}
		}
		saved = append(saved, savedPost{post: stored, media: m})
		data.PostsSaved++

		if err := retry.Wait(ctx, c.cfg.PostPause); err != nil {
			result.ErrorMessage = err.Error()
			result.Data = data
			return result
		}
	}

	// phase two: metric snapshots for the rows that landed
	for _, sp := range saved {
		insights, err := c.graph.GetPostInsights(ctx, sp.media.ID, account.AccessToken, sp.media.MediaType)
		if err != nil {
			log.WithError(err).WithField("instagram_post_id", sp.media.ID).Warn("post insights fetch failed")
			continue
		}
		if !dryRun {
			if _, err := c.metrics.CreateOrUpdateDaily(ctx, metricFromInsights(sp.post.ID, c.now(), insights)); err != nil {
				log.WithError(err).WithField("post_id", sp.post.ID).Warn("metric save failed")
				continue
			}
		}
		data.MetricsSaved++

		if err := retry.Wait(ctx, c.cfg.PostPause); err != nil {
			result.ErrorMessage = err.Error()
			result.Data = data
			return result
		}
	}

	if !dryRun {
		if err := c.accounts.UpdateProfile(ctx, account.ID, details.Username, details.Name, details.ProfilePictureURL); err != nil {
			log.WithError(err).Warn("profile update failed")
		}
		if err := c.accounts.TouchLastSynced(ctx, account.ID, c.now()); err != nil {
			log.WithError(err).Warn("last synced update failed")
		}
	}

	result.Success = true
	result.Data = data
	log.InfoWithFields("account collected", map[string]interface{}{
		"posts_saved":   data.PostsSaved,
		"metrics_saved": data.MetricsSaved,
	})
	return result
}

type savedPost struct {
	post  *models.Post
	media graph.Media
}
