package sync

import (
	"context"
	"time"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/retry"
)

// SyncOptions tune a single on-demand refresh. Zero values fall back
// to the configured defaults. A dry run skips all writes but still
// reports what would have been saved.
type SyncOptions struct {
	WindowDays int
	MaxPosts   int
	Force      bool
	DryRun     bool
}

// RecentPostSyncer refreshes a single account's recent posts on
// demand. Concurrent refreshes of the same account are rejected, and
// repeat refreshes inside the minimum interval are throttled unless
// forced.
type RecentPostSyncer struct {
	accounts AccountStore
	posts    PostStore
	metrics  MetricStore
	graph    GraphClient
	locks    *AccountLocks
	cfg      *config.SyncConfig
	pause    time.Duration
	logger   logger.Logger
	now      func() time.Time
}

func NewRecentPostSyncer(
	accounts AccountStore,
	posts PostStore,
	metrics MetricStore,
	graphClient GraphClient,
	locks *AccountLocks,
	syncCfg *config.SyncConfig,
	collectionCfg *config.CollectionConfig,
	log logger.Logger,
) *RecentPostSyncer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &RecentPostSyncer{
		accounts: accounts,
		posts:    posts,
		metrics:  metrics,
		graph:    graphClient,
		locks:    locks,
		cfg:      syncCfg,
		pause:    collectionCfg.PostPause,
		logger:   log,
		now:      time.Now,
	}
}

// Sync refreshes the account's posts from the recent window. The
// account lock is held for the whole refresh so a second caller gets a
// conflict instead of doubled API traffic.
func (s *RecentPostSyncer) Sync(ctx context.Context, accountID string, opts SyncOptions) (*RecentSyncResult, error) {
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = s.cfg.WindowDays
	}
	maxPosts := opts.MaxPosts
	if maxPosts <= 0 {
		maxPosts = s.cfg.MaxPosts
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.locks.TryAcquire(accountID); err != nil {
		return nil, err
	}
	defer s.locks.Release(accountID)

	if !opts.Force && account.LastSyncedAt != nil {
		elapsed := s.now().Sub(*account.LastSyncedAt)
		if elapsed < s.cfg.MinRefreshInterval {
			remaining := s.cfg.MinRefreshInterval - elapsed
			return nil, errs.RateLimited(remaining, "account refreshed too recently")
		}
	}

	log := s.logger.WithFields(map[string]interface{}{
		"account_id":  accountID,
		"username":    account.Username,
		"window_days": windowDays,
	})
	log.Info("recent post sync started")

	since := s.now().UTC().AddDate(0, 0, -windowDays)
	media, err := s.graph.GetPostsSince(ctx, account.InstagramUserID, account.AccessToken, since, maxPosts)
	if err != nil {
		log.WithError(err).Error("recent posts fetch failed")
		return nil, err
	}

	result := &RecentSyncResult{
		AccountID:       account.ID,
		InstagramUserID: account.InstagramUserID,
		WindowDays:      windowDays,
		DryRun:          opts.DryRun,
		PostsFound:      len(media),
	}

	saved := make([]savedPost, 0, len(media))
	for _, m := range media {
		row := postFromMedia(account.ID, m)
		stored := &row
		if !opts.DryRun {
			stored, err = s.posts.Upsert(ctx, row)
			if err != nil {
				log.WithError(err).WithField("instagram_post_id", m.ID).Warn("post save failed")
				continue
			}
		}
		saved = append(saved, savedPost{post: stored, media: m})
		result.PostsSaved++

		if err := retry.Wait(ctx, s.pause); err != nil {
			return result, err
		}
	}

	for _, sp := range saved {
		insights, err := s.graph.GetPostInsights(ctx, sp.media.ID, account.AccessToken, sp.media.MediaType)
		if err != nil {
			log.WithError(err).WithField("instagram_post_id", sp.media.ID).Warn("post insights fetch failed")
			continue
		}
		if !opts.DryRun {
			if _, err := s.metrics.CreateOrUpdateDaily(ctx, metricFromInsights(sp.post.ID, s.now(), insights)); err != nil {
				log.WithError(err).WithField("post_id", sp.post.ID).Warn("metric save failed")
				continue
			}
		}
		result.MetricsSaved++

		if err := retry.Wait(ctx, s.pause); err != nil {
			return result, err
		}
	}

	if !opts.DryRun {
		if err := s.accounts.TouchLastSynced(ctx, account.ID, s.now()); err != nil {
			log.WithError(err).Warn("last synced update failed")
		}
	}

	result.SyncedAt = s.now().UTC()
	log.InfoWithFields("recent post sync finished", map[string]interface{}{
		"posts_found":   result.PostsFound,
		"posts_saved":   result.PostsSaved,
		"metrics_saved": result.MetricsSaved,
	})
	return result, nil
}
