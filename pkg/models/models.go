package models

import (
	"fmt"
	"strings"
	"time"
)

// MediaType is the Instagram media classification
type MediaType string

const (
	MediaTypeImage         MediaType = "IMAGE"
	MediaTypeVideo         MediaType = "VIDEO"
	MediaTypeCarouselAlbum MediaType = "CAROUSEL_ALBUM"
	MediaTypeStory         MediaType = "STORY"
)

// Date is a calendar date without a time component, serialized as
// YYYY-MM-DD the way the storage backend represents date columns.
type Date struct {
	time.Time
}

// NewDate creates a Date for the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date shifted by the given number of days.
func (d Date) AddDays(days int) Date {
	return Date{d.Time.AddDate(0, 0, days)}
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Account is an Instagram business account registered for collection.
// ID is the storage row key; InstagramUserID is the Graph API user id.
type Account struct {
	ID                string     `json:"id,omitempty"`
	InstagramUserID   string     `json:"instagram_user_id"`
	Username          string     `json:"username"`
	AccountName       string     `json:"account_name,omitempty"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	AccessToken       string     `json:"access_token_encrypted,omitempty"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	IsActive          bool       `json:"is_active"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// Post is a stored Instagram post. PostedAt is nil when the platform
// timestamp could not be parsed.
type Post struct {
	ID              string     `json:"id,omitempty"`
	AccountID       string     `json:"account_id"`
	InstagramPostID string     `json:"instagram_post_id"`
	MediaType       MediaType  `json:"media_type"`
	Caption         string     `json:"caption,omitempty"`
	MediaURL        string     `json:"media_url,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	Permalink       string     `json:"permalink,omitempty"`
	PostedAt        *time.Time `json:"posted_at,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// PostMetric is a point-in-time snapshot of a post's performance
// counters with the engagement rate computed at save time.
type PostMetric struct {
	ID                 string    `json:"id,omitempty"`
	PostID             string    `json:"post_id"`
	RecordedAt         time.Time `json:"recorded_at"`
	Likes              int64     `json:"likes"`
	Comments           int64     `json:"comments"`
	Saved              int64     `json:"saved"`
	Shares             int64     `json:"shares"`
	Views              int64     `json:"views"`
	Reach              int64     `json:"reach"`
	TotalInteractions  int64     `json:"total_interactions"`
	Follows            int64     `json:"follows"`
	ProfileVisits      int64     `json:"profile_visits"`
	ProfileActivity    int64     `json:"profile_activity"`
	VideoViewTotalTime int64     `json:"video_view_total_time"`
	AvgWatchTime       int64     `json:"avg_watch_time"`
	EngagementRate     float64   `json:"engagement_rate"`
}

// DailyStat is the account-level daily snapshot.
type DailyStat struct {
	ID                    string         `json:"id,omitempty"`
	AccountID             string         `json:"account_id"`
	StatsDate             Date           `json:"stats_date"`
	FollowersCount        int64          `json:"followers_count"`
	FollowingCount        int64          `json:"following_count"`
	MediaCount            int64          `json:"media_count"`
	PostsCount            int64          `json:"posts_count"`
	TotalLikes            int64          `json:"total_likes"`
	TotalComments         int64          `json:"total_comments"`
	MediaTypeDistribution map[string]int `json:"media_type_distribution,omitempty"`
	DataSources           []string       `json:"data_sources,omitempty"`
	CreatedAt             *time.Time     `json:"created_at,omitempty"`
}

// MonthlyStat is derived from daily snapshots on demand; it is not a
// stored table of its own.
type MonthlyStat struct {
	AccountID         string  `json:"account_id"`
	Month             string  `json:"month"`
	AvgFollowersCount int64   `json:"avg_followers_count"`
	EndFollowersCount int64   `json:"end_followers_count"`
	TotalPosts        int64   `json:"total_posts"`
	TotalLikes        int64   `json:"total_likes"`
	TotalComments     int64   `json:"total_comments"`
	AvgEngagement     float64 `json:"avg_engagement"`
	DaysWithData      int     `json:"days_with_data"`
}
