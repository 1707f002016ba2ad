package sync

import (
	"context"
	"time"

	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/models"
)

// GraphClient is the slice of the Graph API client the collectors use
type GraphClient interface {
	ValidateAccessToken(ctx context.Context, accessToken string) (*graph.TokenInfo, error)
	AccountDetailsWithFallback(ctx context.Context, userID, accessToken string) (*graph.AccountData, error)
	GetInsightsMetrics(ctx context.Context, userID, accessToken string, metrics []string, period string) (map[string]int64, error)
	GetPostsSince(ctx context.Context, userID, accessToken string, since time.Time, maxPosts int) ([]graph.Media, error)
	FetchAllPosts(ctx context.Context, userID, accessToken string, maxPosts int) ([]graph.Media, error)
	GetPostInsights(ctx context.Context, mediaID, accessToken, mediaType string) (map[string]int64, error)
}

// AccountStore persists accounts
type AccountStore interface {
	GetActiveAccounts(ctx context.Context) ([]models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	UpdateProfile(ctx context.Context, id, username, accountName, profilePictureURL string) error
	TouchLastSynced(ctx context.Context, id string, at time.Time) error
}

// PostStore persists posts
type PostStore interface {
	Upsert(ctx context.Context, post models.Post) (*models.Post, error)
	GetByInstagramPostID(ctx context.Context, instagramPostID string) (*models.Post, error)
	ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]models.Post, error)
}

// MetricStore persists post metric snapshots
type MetricStore interface {
	CreateOrUpdateDaily(ctx context.Context, metric models.PostMetric) (*models.PostMetric, error)
	PostIDsWithMetrics(ctx context.Context, postIDs []string) (map[string]bool, error)
}

// DailyStatStore persists account daily snapshots
type DailyStatStore interface {
	Upsert(ctx context.Context, stat models.DailyStat) (*models.DailyStat, error)
}
