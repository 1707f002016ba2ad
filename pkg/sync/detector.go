package sync

import (
	"context"
	"time"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/retry"
)

// DetectOptions narrow a detection sweep to specific accounts. Empty
// means all active accounts. Force reprocesses posts that already
// have a stored row.
type DetectOptions struct {
	TargetAccounts []string
	Force          bool
}

// PostDetector sweeps accounts for posts published since the last
// sweep. A per-account watermark bounds the lookback; accounts never
// swept fall back to a fixed window so the first run stays cheap.
type PostDetector struct {
	accounts   AccountStore
	posts      PostStore
	metrics    MetricStore
	graph      GraphClient
	watermarks *WatermarkStore
	cfg        *config.DetectorConfig
	pause      time.Duration
	logger     logger.Logger
	now        func() time.Time
}

func NewPostDetector(
	accounts AccountStore,
	posts PostStore,
	metrics MetricStore,
	graphClient GraphClient,
	watermarks *WatermarkStore,
	detectorCfg *config.DetectorConfig,
	collectionCfg *config.CollectionConfig,
	log logger.Logger,
) *PostDetector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PostDetector{
		accounts:   accounts,
		posts:      posts,
		metrics:    metrics,
		graph:      graphClient,
		watermarks: watermarks,
		cfg:        detectorCfg,
		pause:      collectionCfg.PostPause,
		logger:     log,
		now:        time.Now,
	}
}

// Detect sweeps the selected accounts once and saves any new posts
// with an initial metric snapshot.
func (d *PostDetector) Detect(ctx context.Context, opts DetectOptions) (*DetectionResult, error) {
	accounts, err := d.targetAccounts(ctx, opts)
	if err != nil {
		return nil, err
	}

	marks, err := d.watermarks.Load()
	if err != nil {
		d.logger.WithError(err).Warn("watermark load failed, using fallback window")
		marks = map[string]time.Time{}
	}

	result := &DetectionResult{}
	fallback := d.now().UTC().Add(-time.Duration(d.cfg.FallbackHours) * time.Hour)

	for _, account := range accounts {
		result.AccountsChecked++

		cutoff := fallback
		if mark, ok := marks[account.ID]; ok && mark.After(cutoff) {
			cutoff = mark
		}

		sweptAt := d.now().UTC()
		clean, err := d.sweepAccount(ctx, account, cutoff, opts.Force, result)
		if err != nil {
			d.logger.WithError(err).WithField("account_id", account.ID).Error("account sweep failed")
			result.FailedAccounts++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		// posts that failed to save must stay behind the watermark so
		// the next sweep detects them again
		if clean {
			marks[account.ID] = sweptAt
		}
	}

	if err := d.watermarks.Save(marks); err != nil {
		d.logger.WithError(err).Warn("watermark save failed")
	}

	result.CompletedAt = d.now().UTC()
	d.logger.InfoWithFields("post detection finished", map[string]interface{}{
		"accounts_checked": result.AccountsChecked,
		"new_posts":        result.NewPosts,
		"posts_saved":      result.PostsSaved,
		"metrics_saved":    result.MetricsSaved,
		"failed_accounts":  result.FailedAccounts,
	})
	return result, nil
}

func (d *PostDetector) targetAccounts(ctx context.Context, opts DetectOptions) ([]models.Account, error) {
	if len(opts.TargetAccounts) == 0 {
		return d.accounts.GetActiveAccounts(ctx)
	}
	accounts := make([]models.Account, 0, len(opts.TargetAccounts))
	for _, id := range opts.TargetAccounts {
		account, err := d.accounts.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

// sweepAccount fetches and saves one account's posts since the
// cutoff. clean reports whether every detected post got its row; an
// unclean sweep keeps the account's watermark where it was.
func (d *PostDetector) sweepAccount(ctx context.Context, account models.Account, cutoff time.Time, force bool, result *DetectionResult) (clean bool, err error) {
	log := d.logger.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"username":   account.Username,
		"cutoff":     cutoff.Format(time.RFC3339),
	})

	fetched, err := d.graph.GetPostsSince(ctx, account.InstagramUserID, account.AccessToken, cutoff, 0)
	if err != nil {
		return false, err
	}

	// a fetched post is new only if no row exists for it, unless
	// forced to reprocess
	media := fetched[:0]
	for _, m := range fetched {
		if !force {
			existing, err := d.posts.GetByInstagramPostID(ctx, m.ID)
			if err != nil {
				return false, err
			}
			if existing != nil {
				continue
			}
		}
		media = append(media, m)
	}
	if len(media) == 0 {
		return true, nil
	}
	result.NewPosts += len(media)
	log.InfoWithFields("new posts detected", map[string]interface{}{"count": len(media)})

	clean = true
	for _, m := range media {
		post, err := d.posts.Upsert(ctx, postFromMedia(account.ID, m))
		if err != nil {
			log.WithError(err).WithField("instagram_post_id", m.ID).Warn("post save failed")
			clean = false
			continue
		}
		result.PostsSaved++

		insights, err := d.graph.GetPostInsights(ctx, m.ID, account.AccessToken, m.MediaType)
		if err != nil {
			log.WithError(err).WithField("instagram_post_id", m.ID).Warn("post insights fetch failed")
		} else if _, err := d.metrics.CreateOrUpdateDaily(ctx, metricFromInsights(post.ID, d.now(), insights)); err != nil {
			log.WithError(err).WithField("post_id", post.ID).Warn("metric save failed")
		} else {
			result.MetricsSaved++
		}

		if err := retry.Wait(ctx, d.pause); err != nil {
			return false, err
		}
	}
	return clean, nil
}
