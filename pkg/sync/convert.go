package sync

import (
	"time"

	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/models"
)

// postFromMedia converts a Graph API media item into a post record.
// Caption truncation happens in the repository, not here.
func postFromMedia(accountID string, media graph.Media) models.Post {
	return models.Post{
		AccountID:       accountID,
		InstagramPostID: media.ID,
		MediaType:       models.MediaType(media.MediaType),
		Caption:         media.Caption,
		MediaURL:        media.MediaURL,
		ThumbnailURL:    media.ThumbnailURL,
		Permalink:       media.Permalink,
		PostedAt:        media.PostedAt(),
	}
}

// metricFromInsights builds a metric snapshot from a normalized insight
// map. Metrics the API withheld stay zero; the engagement rate is left
// for the repository to compute at save time.
func metricFromInsights(postID string, recordedAt time.Time, insights map[string]int64) models.PostMetric {
	return models.PostMetric{
		PostID:             postID,
		RecordedAt:         recordedAt.UTC(),
		Likes:              insights["likes"],
		Comments:           insights["comments"],
		Saved:              insights["saved"],
		Shares:             insights["shares"],
		Views:              insights["views"],
		Reach:              insights["reach"],
		TotalInteractions:  insights["total_interactions"],
		Follows:            insights["follows"],
		ProfileVisits:      insights["profile_visits"],
		ProfileActivity:    insights["profile_activity"],
		VideoViewTotalTime: insights["video_view_total_time"],
		AvgWatchTime:       insights["avg_watch_time"],
	}
}
