package sync

import (
	"context"
	"time"

	"github.com/shintairiku/instagram-analysis/pkg/checkpoint"
	"github.com/shintairiku/instagram-analysis/pkg/config"
	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/retry"
)

// BackfillOptions bound a historical collection run. Nil dates mean
// unbounded on that side.
type BackfillOptions struct {
	StartDate *models.Date
	EndDate   *models.Date
	MaxPosts  int
}

// HistoricalCollector walks an account's full media history in chunks,
// saving posts and current metric snapshots. Progress is checkpointed
// per chunk so an interrupted run resumes where it stopped instead of
// refetching insights for posts it already handled.
type HistoricalCollector struct {
	accounts      AccountStore
	posts         PostStore
	metrics       MetricStore
	graph         GraphClient
	cfg           *config.CollectionConfig
	checkpointDir string
	logger        logger.Logger
	now           func() time.Time
}

func NewHistoricalCollector(
	accounts AccountStore,
	posts PostStore,
	metrics MetricStore,
	graphClient GraphClient,
	cfg *config.CollectionConfig,
	checkpointDir string,
	log logger.Logger,
) *HistoricalCollector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &HistoricalCollector{
		accounts:      accounts,
		posts:         posts,
		metrics:       metrics,
		graph:         graphClient,
		cfg:           cfg,
		checkpointDir: checkpointDir,
		logger:        log,
		now:           time.Now,
	}
}

// CollectPosts backfills the account's history inside the optional
// date range.
func (c *HistoricalCollector) CollectPosts(ctx context.Context, accountID string, opts BackfillOptions) (*BackfillResult, error) {
	if opts.StartDate != nil && opts.EndDate != nil && opts.EndDate.Before(opts.StartDate.Time) {
		return nil, errs.New(errs.ErrorTypeValidation, 400, "end date is before start date")
	}

	account, err := c.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	startedAt := c.now()
	log := c.logger.WithFields(map[string]interface{}{
		"account_id": accountID,
		"username":   account.Username,
	})
	log.Info("historical collection started")

	manager, err := checkpoint.NewManager(c.checkpointDir, accountID)
	if err != nil {
		return nil, err
	}

	startStr, endStr := "", ""
	if opts.StartDate != nil {
		startStr = opts.StartDate.String()
	}
	if opts.EndDate != nil {
		endStr = opts.EndDate.String()
	}

	resumed := false
	cp, err := manager.Load()
	if err != nil {
		log.WithError(err).Warn("checkpoint load failed, starting fresh")
	}
	if cp != nil && cp.StartDate == startStr && cp.EndDate == endStr {
		resumed = true
		log.InfoWithFields("resuming from checkpoint", map[string]interface{}{
			"processed_posts": len(cp.ProcessedPosts),
		})
	} else {
		cp, err = manager.Create(accountID, startStr, endStr)
		if err != nil {
			return nil, err
		}
	}

	// with a date range the cap applies to posts inside the range, so
	// the fetch itself must stay exhaustive; capping the fetch would
	// drop older in-range posts behind newer out-of-range ones
	fetchCap := opts.MaxPosts
	if opts.StartDate != nil || opts.EndDate != nil {
		fetchCap = 0
	}
	media, err := c.graph.FetchAllPosts(ctx, account.InstagramUserID, account.AccessToken, fetchCap)
	if err != nil {
		log.WithError(err).Error("media history fetch failed")
		return nil, err
	}
	media = filterByDateRange(media, opts.StartDate, opts.EndDate)
	if opts.MaxPosts > 0 && len(media) > opts.MaxPosts {
		media = media[:opts.MaxPosts]
	}

	result := &BackfillResult{
		AccountID:  accountID,
		StartDate:  startStr,
		EndDate:    endStr,
		TotalPosts: len(media),
		Resumed:    resumed,
	}

	pending := make([]graph.Media, 0, len(media))
	for _, m := range media {
		if cp.IsProcessed(m.ID) {
			result.SkippedPosts++
			continue
		}
		pending = append(pending, m)
	}
	cp.TotalPosts = len(media)

	for start := 0; start < len(pending); start += c.cfg.ChunkSize {
		end := start + c.cfg.ChunkSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		if err := c.processChunk(ctx, account, chunk, cp, result, log); err != nil {
			if saveErr := manager.Save(cp); saveErr != nil {
				log.WithError(saveErr).Warn("checkpoint save failed")
			}
			return result, err
		}

		if err := manager.Save(cp); err != nil {
			log.WithError(err).Warn("checkpoint save failed")
		}

		if end < len(pending) {
			if err := retry.Wait(ctx, c.cfg.ChunkPause); err != nil {
				return result, err
			}
		}
	}

	if err := manager.Delete(); err != nil {
		log.WithError(err).Warn("checkpoint cleanup failed")
	}
	if err := c.accounts.TouchLastSynced(ctx, account.ID, c.now()); err != nil {
		log.WithError(err).Warn("last synced update failed")
	}

	result.SavedPosts = cp.SavedPosts
	result.SavedMetrics = cp.SavedMetrics
	result.CompletedAt = c.now().UTC()
	result.DurationSecond = result.CompletedAt.Sub(startedAt.UTC()).Seconds()
	log.InfoWithFields("historical collection finished", map[string]interface{}{
		"total_posts":   result.TotalPosts,
		"skipped_posts": result.SkippedPosts,
		"saved_posts":   result.SavedPosts,
		"saved_metrics": result.SavedMetrics,
		"failed_posts":  result.FailedPosts,
	})
	return result, nil
}

// processChunk saves all posts in the chunk, then their metrics.
// Each post is marked processed in the checkpoint as soon as its
// outcome is known.
func (c *HistoricalCollector) processChunk(
	ctx context.Context,
	account *models.Account,
	chunk []graph.Media,
	cp *checkpoint.Checkpoint,
	result *BackfillResult,
	log logger.Logger,
) error {
	saved := make([]savedPost, 0, len(chunk))
	for _, m := range chunk {
		post, err := c.posts.Upsert(ctx, postFromMedia(account.ID, m))
		if err != nil {
			log.WithError(err).WithField("instagram_post_id", m.ID).Warn("post save failed")
			result.FailedPosts++
			cp.ProcessedPosts[m.ID] = false
			continue
		}
		saved = append(saved, savedPost{post: post, media: m})
		cp.SavedPosts++

		if err := retry.Wait(ctx, c.cfg.PostPause); err != nil {
			return err
		}
	}

	for _, sp := range saved {
		insights, err := c.graph.GetPostInsights(ctx, sp.media.ID, account.AccessToken, sp.media.MediaType)
		if err != nil {
			log.WithError(err).WithField("instagram_post_id", sp.media.ID).Warn("post insights fetch failed")
			cp.ProcessedPosts[sp.media.ID] = false
			continue
		}
		if _, err := c.metrics.CreateOrUpdateDaily(ctx, metricFromInsights(sp.post.ID, c.now(), insights)); err != nil {
			log.WithError(err).WithField("post_id", sp.post.ID).Warn("metric save failed")
			cp.ProcessedPosts[sp.media.ID] = false
			continue
		}
		cp.ProcessedPosts[sp.media.ID] = true
		cp.SavedMetrics++

		if err := retry.Wait(ctx, c.cfg.ChunkMetricPause); err != nil {
			return err
		}
	}
	return nil
}

// CollectMissingMetrics finds posts from the last daysBack days that
// have no metric rows at all and fetches a current snapshot for each.
func (c *HistoricalCollector) CollectMissingMetrics(ctx context.Context, accountID string, daysBack int) (*RepairResult, error) {
	if daysBack <= 0 {
		daysBack = 30
	}

	account, err := c.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	log := c.logger.WithFields(map[string]interface{}{
		"account_id": accountID,
		"days_back":  daysBack,
	})

	since := c.now().UTC().AddDate(0, 0, -daysBack)
	posts, err := c.posts.ListByAccountSince(ctx, accountID, since)
	if err != nil {
		return nil, err
	}

	result := &RepairResult{
		AccountID:     accountID,
		PostsExamined: len(posts),
	}
	if len(posts) == 0 {
		result.CompletedAt = c.now().UTC()
		return result, nil
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	covered, err := c.metrics.PostIDsWithMetrics(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		if covered[p.ID] {
			continue
		}
		result.PostsMissing++

		insights, err := c.graph.GetPostInsights(ctx, p.InstagramPostID, account.AccessToken, string(p.MediaType))
		if err != nil {
			log.WithError(err).WithField("instagram_post_id", p.InstagramPostID).Warn("post insights fetch failed")
			result.FailedPosts++
			continue
		}
		if _, err := c.metrics.CreateOrUpdateDaily(ctx, metricFromInsights(p.ID, c.now(), insights)); err != nil {
			log.WithError(err).WithField("post_id", p.ID).Warn("metric save failed")
			result.FailedPosts++
			continue
		}
		result.MetricsSaved++

		if err := retry.Wait(ctx, c.cfg.ChunkMetricPause); err != nil {
			return result, err
		}
	}

	result.CompletedAt = c.now().UTC()
	log.InfoWithFields("missing metrics repair finished", map[string]interface{}{
		"examined":      result.PostsExamined,
		"missing":       result.PostsMissing,
		"metrics_saved": result.MetricsSaved,
		"failed":        result.FailedPosts,
	})
	return result, nil
}

// filterByDateRange keeps media whose posted timestamp falls inside
// [start, end]. Media without a parsable timestamp is kept.
func filterByDateRange(media []graph.Media, start, end *models.Date) []graph.Media {
	if start == nil && end == nil {
		return media
	}
	out := make([]graph.Media, 0, len(media))
	for _, m := range media {
		postedAt := m.PostedAt()
		if postedAt == nil {
			out = append(out, m)
			continue
		}
		if start != nil && postedAt.Before(start.Time) {
			continue
		}
		if end != nil && !postedAt.Before(end.AddDays(1).Time) {
			continue
		}
		out = append(out, m)
	}
	return out
}
