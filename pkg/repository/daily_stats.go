package repository

import (
	"context"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/storage"
)

const dailyStatsTable = "instagram_daily_stats"

// DailyStatsRepository persists account-level daily snapshots
type DailyStatsRepository struct {
	storage *storage.Client
	logger  logger.Logger
}

// NewDailyStatsRepository creates a DailyStatsRepository
func NewDailyStatsRepository(client *storage.Client, log logger.Logger) *DailyStatsRepository {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DailyStatsRepository{storage: client, logger: log}
}

// Upsert creates or replaces the snapshot for (account, date). Re-runs
// on the same day overwrite rather than duplicate.
func (r *DailyStatsRepository) Upsert(ctx context.Context, stat models.DailyStat) (*models.DailyStat, error) {
	var saved []models.DailyStat
	if err := r.storage.Upsert(ctx, dailyStatsTable, stat, "account_id,stats_date", &saved); err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, errs.New(errs.ErrorTypeServerError, 0, "daily stat upsert returned no rows")
	}
	return &saved[0], nil
}

// GetByDate returns the snapshot for an account on a given date, or
// nil when none was collected.
func (r *DailyStatsRepository) GetByDate(ctx context.Context, accountID string, date models.Date) (*models.DailyStat, error) {
	var stat models.DailyStat
	found, err := r.storage.From(dailyStatsTable).
		Eq("account_id", accountID).
		Eq("stats_date", date.String()).
		Single(ctx, &stat)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &stat, nil
}

// GrowthMetrics compares the first and last snapshots of a range
type GrowthMetrics struct {
	AccountID       string      `json:"account_id"`
	FromDate        models.Date `json:"from_date"`
	ToDate          models.Date `json:"to_date"`
	DaysWithData    int         `json:"days_with_data"`
	FollowersGrowth int64       `json:"followers_growth"`
	FollowersRate   float64     `json:"followers_growth_rate"`
	PostsAdded      int64       `json:"posts_added"`
	LikesDelta      int64       `json:"likes_delta"`
	CommentsDelta   int64       `json:"comments_delta"`
}

// Growth computes follower and content growth between the first and
// last snapshots inside [from, to]. Nil when the range holds fewer
// than two snapshots.
func (r *DailyStatsRepository) Growth(ctx context.Context, accountID string, from, to models.Date) (*GrowthMetrics, error) {
	stats, err := r.GetRange(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}
	if len(stats) < 2 {
		return nil, nil
	}

	first, last := stats[0], stats[len(stats)-1]
	growth := &GrowthMetrics{
		AccountID:       accountID,
		FromDate:        first.StatsDate,
		ToDate:          last.StatsDate,
		DaysWithData:    len(stats),
		FollowersGrowth: last.FollowersCount - first.FollowersCount,
		PostsAdded:      last.MediaCount - first.MediaCount,
		LikesDelta:      last.TotalLikes - first.TotalLikes,
		CommentsDelta:   last.TotalComments - first.TotalComments,
	}
	if first.FollowersCount > 0 {
		growth.FollowersRate = models.Round2(100 * float64(growth.FollowersGrowth) / float64(first.FollowersCount))
	}
	return growth, nil
}

// GetRange returns snapshots within [from, to], oldest first
func (r *DailyStatsRepository) GetRange(ctx context.Context, accountID string, from, to models.Date) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	err := r.storage.From(dailyStatsTable).
		Eq("account_id", accountID).
		Gte("stats_date", from.String()).
		Lte("stats_date", to.String()).
		Order("stats_date", false).
		Get(ctx, &stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
