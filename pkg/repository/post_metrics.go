package repository

import (
	"context"
	"sort"
	"time"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/storage"
)

const postMetricsTable = "instagram_post_metrics"

// PostMetricRepository persists post metric snapshots. A post gets at
// most one row per calendar day; a second save on the same day updates
// the existing row instead of stacking snapshots.
type PostMetricRepository struct {
	storage *storage.Client
	logger  logger.Logger
}

// NewPostMetricRepository creates a PostMetricRepository
func NewPostMetricRepository(client *storage.Client, log logger.Logger) *PostMetricRepository {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PostMetricRepository{storage: client, logger: log}
}

// CreateOrUpdateDaily saves a metric snapshot, merging into the
// existing row when one exists for the same post and calendar day.
// The engagement rate is always recomputed from the counters being
// saved.
func (r *PostMetricRepository) CreateOrUpdateDaily(ctx context.Context, metric models.PostMetric) (*models.PostMetric, error) {
	metric.EngagementRate = models.EngagementRate(metric.Likes, metric.Comments, metric.Saved, metric.Shares, metric.Reach)

	day := models.DateOf(metric.RecordedAt)
	dayStart := day.Time
	dayEnd := day.AddDays(1).Time

	var existing models.PostMetric
	found, err := r.storage.From(postMetricsTable).
		Eq("post_id", metric.PostID).
		Gte("recorded_at", dayStart.Format(time.RFC3339)).
		Lt("recorded_at", dayEnd.Format(time.RFC3339)).
		Single(ctx, &existing)
	if err != nil {
		return nil, err
	}

	if found {
		metric.ID = existing.ID
		var updated []models.PostMetric
		err := r.storage.From(postMetricsTable).
			Eq("id", existing.ID).
			Update(ctx, metric, &updated)
		if err != nil {
			return nil, err
		}
		if len(updated) == 0 {
			return nil, errs.New(errs.ErrorTypeServerError, 0, "metric update returned no rows")
		}
		return &updated[0], nil
	}

	var created []models.PostMetric
	if err := r.storage.Insert(ctx, postMetricsTable, metric, &created); err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, errs.New(errs.ErrorTypeServerError, 0, "metric insert returned no rows")
	}
	return &created[0], nil
}

// PostIDsWithMetrics returns which of the given posts already have at
// least one metric row. Used to find posts the repair pass still owes
// a snapshot.
func (r *PostMetricRepository) PostIDsWithMetrics(ctx context.Context, postIDs []string) (map[string]bool, error) {
	if len(postIDs) == 0 {
		return map[string]bool{}, nil
	}

	var rows []struct {
		PostID string `json:"post_id"`
	}
	err := r.storage.From(postMetricsTable).
		Select("post_id").
		In("post_id", postIDs).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}

	have := make(map[string]bool, len(rows))
	for _, row := range rows {
		have[row.PostID] = true
	}
	return have, nil
}

// MetricsSummary aggregates the latest snapshot of each post in a set
type MetricsSummary struct {
	Posts             int     `json:"posts"`
	TotalLikes        int64   `json:"total_likes"`
	TotalComments     int64   `json:"total_comments"`
	TotalSaved        int64   `json:"total_saved"`
	TotalShares       int64   `json:"total_shares"`
	TotalReach        int64   `json:"total_reach"`
	TotalViews        int64   `json:"total_views"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
}

// Summary totals the newest snapshot per post. Posts without any
// metric row are simply absent from the totals.
func (r *PostMetricRepository) Summary(ctx context.Context, postIDs []string) (*MetricsSummary, error) {
	latest, err := r.latestPerPost(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{Posts: len(latest)}
	var rateSum float64
	for _, m := range latest {
		summary.TotalLikes += m.Likes
		summary.TotalComments += m.Comments
		summary.TotalSaved += m.Saved
		summary.TotalShares += m.Shares
		summary.TotalReach += m.Reach
		summary.TotalViews += m.Views
		rateSum += m.EngagementRate
	}
	if len(latest) > 0 {
		summary.AvgEngagementRate = models.Round2(rateSum / float64(len(latest)))
	}
	return summary, nil
}

// TopByEngagement returns the newest snapshot of each post, best
// engagement rate first, capped at limit.
func (r *PostMetricRepository) TopByEngagement(ctx context.Context, postIDs []string, limit int) ([]models.PostMetric, error) {
	latest, err := r.latestPerPost(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.PostMetric, 0, len(latest))
	for _, m := range latest {
		ranked = append(ranked, m)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].EngagementRate > ranked[j].EngagementRate
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// latestPerPost fetches all rows for the posts and keeps the newest
// per post. Rows arrive newest first so the first row per post wins.
func (r *PostMetricRepository) latestPerPost(ctx context.Context, postIDs []string) (map[string]models.PostMetric, error) {
	if len(postIDs) == 0 {
		return map[string]models.PostMetric{}, nil
	}

	var rows []models.PostMetric
	err := r.storage.From(postMetricsTable).
		In("post_id", postIDs).
		Order("recorded_at", true).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.PostMetric, len(postIDs))
	for _, row := range rows {
		if _, ok := latest[row.PostID]; !ok {
			latest[row.PostID] = row
		}
	}
	return latest, nil
}
