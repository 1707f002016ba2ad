package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
)

func testCollectionConfig() *config.CollectionConfig {
	return &config.CollectionConfig{
		AccountPause:     time.Millisecond,
		PostPause:        time.Millisecond,
		ChunkMetricPause: time.Millisecond,
		ChunkPause:       time.Millisecond,
		ChunkSize:        2,
		CaptionLimit:     2000,
	}
}

func TestDailyCollectorRun(t *testing.T) {
	target := mustDate(t, "2026-08-28")

	accounts := newFakeAccounts(testAccount("acc-1"), testAccount("acc-2"))
	posts := newFakePosts()
	metrics := newFakeMetrics()
	dailyStats := &fakeDailyStats{}
	g := &fakeGraph{
		details: &graph.AccountData{
			ID:             "17841",
			Username:       "user_acc",
			FollowersCount: 1200,
			MediaCount:     40,
		},
		media: []graph.Media{
			mediaOn("m1", "2026-08-28T09:00:00+0000"),
			mediaOn("m2", "2026-08-28T15:30:00+0000"),
			mediaOn("m3", "2026-08-27T23:00:00+0000"),
		},
		insights: map[string]map[string]int64{
			"m1": {"likes": 10, "reach": 100},
			"m2": {"likes": 4, "reach": 50},
		},
	}

	collector := NewDailyCollector(accounts, posts, metrics, dailyStats, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(context.Background(), target, CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalAccounts)
	assert.Equal(t, 2, summary.SuccessfulAccounts)
	assert.Equal(t, 0, summary.FailedAccounts)
	assert.NotEmpty(t, summary.RunID)
	assert.Greater(t, summary.DurationSeconds, 0.0)

	// m3 was posted the day before the target and must be excluded
	for _, result := range summary.Results {
		require.True(t, result.Success)
		require.NotNil(t, result.Data)
		assert.Equal(t, 2, result.Data.PostsSaved)
		assert.Equal(t, 2, result.Data.MetricsSaved)
		assert.True(t, result.Data.DailyStatSaved)
	}

	require.Len(t, dailyStats.saved, 2)
	assert.Equal(t, int64(1200), dailyStats.saved[0].FollowersCount)
	assert.Equal(t, target, dailyStats.saved[0].StatsDate)

	assert.Len(t, accounts.synced, 2)
	assert.Len(t, accounts.profiles, 2)
}

func TestDailyCollectorDryRun(t *testing.T) {
	target := mustDate(t, "2026-08-28")

	accounts := newFakeAccounts(testAccount("acc-1"))
	posts := newFakePosts()
	metrics := newFakeMetrics()
	dailyStats := &fakeDailyStats{}
	g := &fakeGraph{
		details: &graph.AccountData{ID: "17841", Username: "user_acc", FollowersCount: 1200},
		media: []graph.Media{
			mediaOn("m1", "2026-08-28T09:00:00+0000"),
			mediaOn("m2", "2026-08-28T15:30:00+0000"),
		},
		insights: map[string]map[string]int64{
			"m1": {"likes": 10, "reach": 100},
			"m2": {"likes": 4, "reach": 50},
		},
	}

	collector := NewDailyCollector(accounts, posts, metrics, dailyStats, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(context.Background(), target, CollectOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.SuccessfulAccounts)

	// the full pipeline ran and counted what it would have saved
	require.Len(t, summary.Results, 1)
	data := summary.Results[0].Data
	require.NotNil(t, data)
	assert.Equal(t, 2, data.PostsSaved)
	assert.Equal(t, 2, data.MetricsSaved)
	assert.True(t, data.DailyStatSaved)
	assert.Len(t, g.insightCalls, 2)

	// but nothing was written
	assert.Empty(t, posts.byIGID)
	assert.Empty(t, metrics.saved)
	assert.Empty(t, dailyStats.saved)
	assert.Empty(t, accounts.synced)
	assert.Empty(t, accounts.profiles)
}

func TestDailyCollectorFollowerCountFromInsights(t *testing.T) {
	target := mustDate(t, "2026-08-28")

	accounts := newFakeAccounts(testAccount("acc-1"))
	dailyStats := &fakeDailyStats{}
	g := &fakeGraph{
		// restricted account: profile counters come back zero
		details:         &graph.AccountData{ID: "17841", Username: "user_acc"},
		accountInsights: map[string]int64{"follower_count": 880},
	}

	collector := NewDailyCollector(accounts, newFakePosts(), newFakeMetrics(), dailyStats, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(context.Background(), target, CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessfulAccounts)
	assert.Equal(t, 1, g.accInsightCalls)

	require.Len(t, dailyStats.saved, 1)
	assert.Equal(t, int64(880), dailyStats.saved[0].FollowersCount)
	assert.Contains(t, dailyStats.saved[0].DataSources, "insights_api")
}

func TestDailyCollectorInsightsRejectionTolerated(t *testing.T) {
	target := mustDate(t, "2026-08-28")

	dailyStats := &fakeDailyStats{}
	g := &fakeGraph{
		details:        &graph.AccountData{ID: "17841", Username: "user_acc", FollowersCount: 300},
		accInsightsErr: errs.New(errs.ErrorTypeExternalAPI, 100, "insights not available"),
	}

	collector := NewDailyCollector(newFakeAccounts(testAccount("acc-1")), newFakePosts(), newFakeMetrics(), dailyStats, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(context.Background(), target, CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessfulAccounts)
	require.Len(t, dailyStats.saved, 1)
	assert.Equal(t, int64(300), dailyStats.saved[0].FollowersCount)
}

func TestDailyCollectorInvalidTokenFailsAccount(t *testing.T) {
	target := mustDate(t, "2026-08-28")

	accounts := newFakeAccounts(testAccount("acc-1"))
	g := &fakeGraph{
		tokenErr: errs.New(errs.ErrorTypeAuth, 190, "token revoked"),
		details:  &graph.AccountData{FollowersCount: 100},
	}

	collector := NewDailyCollector(accounts, newFakePosts(), newFakeMetrics(), &fakeDailyStats{}, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(context.Background(), target, CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedAccounts)
	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].Success)
	assert.Contains(t, summary.Results[0].ErrorMessage, "token revoked")
	assert.Empty(t, accounts.synced)
}

func TestDailyCollectorAccountFailureDoesNotAbortRun(t *testing.T) {
	target := mustDate(t, "2026-08-28")

	accounts := newFakeAccounts(testAccount("acc-1"), testAccount("acc-2"))
	g := &fakeGraph{
		detailsErr: errs.New(errs.ErrorTypeAuth, 190, "token expired"),
	}

	collector := NewDailyCollector(accounts, newFakePosts(), newFakeMetrics(), &fakeDailyStats{}, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(context.Background(), target, CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SuccessfulAccounts)
	assert.Equal(t, 2, summary.FailedAccounts)
	for _, result := range summary.Results {
		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "token expired")
	}
}

func TestDailyCollectorIsolatesSingleAccountFailure(t *testing.T) {
	target := mustDate(t, "2026-08-28")

	accounts := newFakeAccounts(testAccount("acc-1"), testAccount("acc-2"), testAccount("acc-3"))
	g := &fakeGraph{
		details: &graph.AccountData{ID: "17841", Username: "user_acc", FollowersCount: 500},
		detailsErrByUser: map[string]error{
			"1784acc-2": errs.New(errs.ErrorTypeServerError, 500, "graph unavailable"),
		},
	}

	collector := NewDailyCollector(accounts, newFakePosts(), newFakeMetrics(), &fakeDailyStats{}, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(context.Background(), target, CollectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuccessfulAccounts)
	assert.Equal(t, 1, summary.FailedAccounts)

	// healthy accounts got their sync timestamp, the failed one did not
	assert.Contains(t, accounts.synced, "acc-1")
	assert.Contains(t, accounts.synced, "acc-3")
	assert.NotContains(t, accounts.synced, "acc-2")

	for _, result := range summary.Results {
		if result.AccountID == "acc-2" {
			assert.False(t, result.Success)
			assert.Contains(t, result.ErrorMessage, "graph unavailable")
		} else {
			assert.True(t, result.Success)
		}
	}
}

func TestDailyCollectorRejectsConcurrentRun(t *testing.T) {
	target := mustDate(t, "2026-08-28")
	state := NewRunState()
	require.NoError(t, state.TryAcquire("existing-run", target))

	collector := NewDailyCollector(newFakeAccounts(), newFakePosts(), newFakeMetrics(), &fakeDailyStats{}, &fakeGraph{}, state, testCollectionConfig(), logger.NewTestLogger())

	_, err := collector.Run(context.Background(), target, CollectOptions{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConflict))

	_, err = collector.Start(context.Background(), target, CollectOptions{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConflict))
}

func TestDailyCollectorStartReleasesState(t *testing.T) {
	target := mustDate(t, "2026-08-28")
	state := NewRunState()

	collector := NewDailyCollector(newFakeAccounts(testAccount("acc-1")), newFakePosts(), newFakeMetrics(), &fakeDailyStats{}, &fakeGraph{details: &graph.AccountData{}}, state, testCollectionConfig(), logger.NewTestLogger())

	runID, err := collector.Start(context.Background(), target, CollectOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	deadline := time.After(2 * time.Second)
	for state.Snapshot().Status == RunStatusRunning {
		select {
		case <-deadline:
			t.Fatal("run did not finish")
		case <-time.After(5 * time.Millisecond):
		}
	}

	snap := state.Snapshot()
	assert.Equal(t, RunStatusCompleted, snap.Status)
	require.NotNil(t, snap.LastSummary)
	assert.Equal(t, runID, snap.LastSummary.RunID)
}

func TestDailyCollectorContextCancellation(t *testing.T) {
	target := mustDate(t, "2026-08-28")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	accounts := newFakeAccounts(testAccount("acc-1"), testAccount("acc-2"))
	g := &fakeGraph{details: &graph.AccountData{}}

	collector := NewDailyCollector(accounts, newFakePosts(), newFakeMetrics(), &fakeDailyStats{}, g, NewRunState(), testCollectionConfig(), logger.NewTestLogger())

	summary, err := collector.Run(ctx, target, CollectOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Less(t, len(summary.Results), 2)
}
