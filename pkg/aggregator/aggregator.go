// Package aggregator builds daily and monthly account statistics from
// fetched account data and posts. Everything here is pure computation;
// no I/O, so the collectors can call it mid-pipeline and tests need no
// fakes.
package aggregator

import (
	"math"

	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/models"
)

// Data source markers recorded on daily stats so consumers know which
// inputs produced a snapshot.
const (
	SourceAccountData = "basic_account_data"
	SourceInsightsAPI = "insights_api"
	SourcePostsData   = "posts_data"
)

// BuildDailyStat assembles the daily snapshot for an account from its
// profile counters, account insight metrics and the posts published on
// the target date. For each counter the first non-zero source wins,
// basic profile data before insights; restricted accounts often report
// zero counters on the profile while insights still carry them. A nil
// account still yields a row carrying the post-derived fields.
func BuildDailyStat(accountID string, date models.Date, account *graph.AccountData, insights map[string]int64, posts []graph.Media) models.DailyStat {
	stat := models.DailyStat{
		AccountID: accountID,
		StatsDate: date,
	}

	if account != nil {
		stat.FollowersCount = account.FollowersCount
		stat.FollowingCount = account.FollowsCount
		stat.MediaCount = account.MediaCount
		stat.DataSources = append(stat.DataSources, SourceAccountData)
	}

	if stat.FollowersCount == 0 {
		if v := insights["follower_count"]; v > 0 {
			stat.FollowersCount = v
			stat.DataSources = append(stat.DataSources, SourceInsightsAPI)
		}
	}

	stat.PostsCount = int64(len(posts))
	if len(posts) > 0 {
		stat.MediaTypeDistribution = make(map[string]int, 3)
		for _, post := range posts {
			stat.TotalLikes += post.LikeCount
			stat.TotalComments += post.CommentsCount
			stat.MediaTypeDistribution[post.MediaType]++
		}
		stat.DataSources = append(stat.DataSources, SourcePostsData)
	}

	return stat
}

// PostsOnDate filters posts to those published on the given calendar
// day in UTC. Posts with unparsable timestamps are excluded.
func PostsOnDate(posts []graph.Media, date models.Date) []graph.Media {
	var matched []graph.Media
	for _, post := range posts {
		postedAt := post.PostedAt()
		if postedAt == nil {
			continue
		}
		if models.DateOf(*postedAt) == date {
			matched = append(matched, post)
		}
	}
	return matched
}

// MonthlyFromDaily rolls up daily snapshots into a monthly summary.
// month is YYYY-MM; stats are assumed to belong to that month and to
// be ordered oldest first, the way the repository returns them.
func MonthlyFromDaily(accountID, month string, stats []models.DailyStat) models.MonthlyStat {
	summary := models.MonthlyStat{
		AccountID:    accountID,
		Month:        month,
		DaysWithData: len(stats),
	}
	if len(stats) == 0 {
		return summary
	}

	var followersSum int64
	var engagementSum float64
	var engagementDays int

	for _, stat := range stats {
		followersSum += stat.FollowersCount
		summary.TotalPosts += stat.PostsCount
		summary.TotalLikes += stat.TotalLikes
		summary.TotalComments += stat.TotalComments

		if stat.FollowersCount > 0 {
			engagementSum += 100 * float64(stat.TotalLikes+stat.TotalComments) / float64(stat.FollowersCount)
			engagementDays++
		}
	}

	summary.AvgFollowersCount = followersSum / int64(len(stats))
	summary.EndFollowersCount = stats[len(stats)-1].FollowersCount
	if engagementDays > 0 {
		summary.AvgEngagement = math.Round(engagementSum/float64(engagementDays)*100) / 100
	}

	return summary
}
