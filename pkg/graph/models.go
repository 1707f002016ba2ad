package graph

import "time"

// apiErrorEnvelope is the error shape the Graph API wraps failures in
type apiErrorEnvelope struct {
	Error *APIError `json:"error"`
}

// APIError is the error object returned by the Graph API
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

// Paging carries cursors for a paginated edge. Next is a complete URL
// and is followed opaquely.
type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
}

// AccountData is the user node response. Counter fields are zero when
// the field set that produced the response did not include them.
type AccountData struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
}

// Media is a single post as returned on the media edge
type Media struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

// PostedAt parses the media timestamp. The Graph API emits both numeric
// zone offsets and trailing Z; unparsable values yield nil rather than
// an error so one bad post does not fail a batch.
func (m Media) PostedAt() *time.Time {
	return ParseTimestamp(m.Timestamp)
}

// MediaList is a page of the media edge
type MediaList struct {
	Data   []Media `json:"data"`
	Paging Paging  `json:"paging"`
}

// InsightValue is one data point of an insight metric
type InsightValue struct {
	Value   int64  `json:"value"`
	EndTime string `json:"end_time"`
}

// Insight is a single metric series
type Insight struct {
	Name   string         `json:"name"`
	Period string         `json:"period"`
	Values []InsightValue `json:"values"`
}

// InsightsResponse is the insights edge response
type InsightsResponse struct {
	Data   []Insight `json:"data"`
	Paging Paging    `json:"paging"`
}

// TokenInfo is the response to a token introspection request
type TokenInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// timestampLayouts covers the formats the Graph API emits
var timestampLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// ParseTimestamp parses a Graph API timestamp into UTC, returning nil
// when the value is empty or unparsable.
func ParseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
