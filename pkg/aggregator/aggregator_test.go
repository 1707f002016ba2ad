package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/models"
)

func TestBuildDailyStat(t *testing.T) {
	account := &graph.AccountData{
		ID:             "17840001",
		Username:       "cafe_tokyo",
		FollowersCount: 1200,
		FollowsCount:   80,
		MediaCount:     342,
	}
	posts := []graph.Media{
		{ID: "p1", MediaType: "IMAGE", LikeCount: 100, CommentsCount: 10},
		{ID: "p2", MediaType: "VIDEO", LikeCount: 250, CommentsCount: 40},
		{ID: "p3", MediaType: "IMAGE", LikeCount: 50, CommentsCount: 5},
	}

	stat := BuildDailyStat("acc-1", models.NewDate(2025, time.March, 9), account, nil, posts)

	assert.Equal(t, "acc-1", stat.AccountID)
	assert.Equal(t, "2025-03-09", stat.StatsDate.String())
	assert.Equal(t, int64(1200), stat.FollowersCount)
	assert.Equal(t, int64(80), stat.FollowingCount)
	assert.Equal(t, int64(342), stat.MediaCount)
	assert.Equal(t, int64(3), stat.PostsCount)
	assert.Equal(t, int64(400), stat.TotalLikes)
	assert.Equal(t, int64(55), stat.TotalComments)
	assert.Equal(t, map[string]int{"IMAGE": 2, "VIDEO": 1}, stat.MediaTypeDistribution)
	assert.Equal(t, []string{SourceAccountData, SourcePostsData}, stat.DataSources)
}

func TestBuildDailyStatWithoutAccountData(t *testing.T) {
	posts := []graph.Media{{ID: "p1", MediaType: "IMAGE", LikeCount: 10}}

	stat := BuildDailyStat("acc-1", models.NewDate(2025, time.March, 9), nil, nil, posts)

	assert.Equal(t, int64(0), stat.FollowersCount)
	assert.Equal(t, int64(1), stat.PostsCount)
	assert.Equal(t, []string{SourcePostsData}, stat.DataSources)
}

func TestBuildDailyStatInsightsFallback(t *testing.T) {
	// restricted accounts report zero profile counters; the insights
	// value fills in only when the profile had nothing
	restricted := &graph.AccountData{ID: "17840002", Username: "locked_down"}
	insights := map[string]int64{"follower_count": 950}

	stat := BuildDailyStat("acc-1", models.NewDate(2025, time.March, 9), restricted, insights, nil)
	assert.Equal(t, int64(950), stat.FollowersCount)
	assert.Contains(t, stat.DataSources, SourceInsightsAPI)

	// a non-zero profile counter wins over insights
	open := &graph.AccountData{FollowersCount: 1200}
	stat = BuildDailyStat("acc-1", models.NewDate(2025, time.March, 9), open, insights, nil)
	assert.Equal(t, int64(1200), stat.FollowersCount)
	assert.NotContains(t, stat.DataSources, SourceInsightsAPI)
}

func TestBuildDailyStatNoPosts(t *testing.T) {
	stat := BuildDailyStat("acc-1", models.NewDate(2025, time.March, 9), &graph.AccountData{FollowersCount: 500}, nil, nil)

	assert.Equal(t, int64(0), stat.PostsCount)
	assert.Nil(t, stat.MediaTypeDistribution)
	assert.Equal(t, []string{SourceAccountData}, stat.DataSources)
}

func TestPostsOnDate(t *testing.T) {
	posts := []graph.Media{
		{ID: "p1", Timestamp: "2025-03-09T08:00:00+0000"},
		{ID: "p2", Timestamp: "2025-03-09T23:59:59+0000"},
		{ID: "p3", Timestamp: "2025-03-10T00:00:01+0000"},
		{ID: "p4", Timestamp: "broken"},
	}

	matched := PostsOnDate(posts, models.NewDate(2025, time.March, 9))
	require.Len(t, matched, 2)
	assert.Equal(t, "p1", matched[0].ID)
	assert.Equal(t, "p2", matched[1].ID)
}

func TestPostsOnDateHonorsUTCBoundary(t *testing.T) {
	// 08:00 JST on March 10 is 23:00 UTC on March 9
	posts := []graph.Media{{ID: "p1", Timestamp: "2025-03-10T08:00:00+0900"}}

	assert.Len(t, PostsOnDate(posts, models.NewDate(2025, time.March, 9)), 1)
	assert.Empty(t, PostsOnDate(posts, models.NewDate(2025, time.March, 10)))
}

func TestMonthlyFromDaily(t *testing.T) {
	stats := []models.DailyStat{
		{FollowersCount: 1000, PostsCount: 2, TotalLikes: 100, TotalComments: 10},
		{FollowersCount: 1100, PostsCount: 1, TotalLikes: 55, TotalComments: 11},
		{FollowersCount: 1200, PostsCount: 0, TotalLikes: 0, TotalComments: 0},
	}

	summary := MonthlyFromDaily("acc-1", "2025-03", stats)

	assert.Equal(t, "2025-03", summary.Month)
	assert.Equal(t, 3, summary.DaysWithData)
	assert.Equal(t, int64(1100), summary.AvgFollowersCount)
	assert.Equal(t, int64(1200), summary.EndFollowersCount)
	assert.Equal(t, int64(3), summary.TotalPosts)
	assert.Equal(t, int64(155), summary.TotalLikes)
	assert.Equal(t, int64(21), summary.TotalComments)
	// per-day engagement: 11.0, 6.0, 0.0 -> avg 5.67
	assert.Equal(t, 5.67, summary.AvgEngagement)
}

func TestMonthlyFromDailyEmpty(t *testing.T) {
	summary := MonthlyFromDaily("acc-1", "2025-03", nil)
	assert.Equal(t, 0, summary.DaysWithData)
	assert.Equal(t, 0.0, summary.AvgEngagement)
}
