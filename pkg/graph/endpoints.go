package graph

import (
	"fmt"
	"net/url"
	"strings"
)

// Field sets requested from the Graph API. The account sets form a
// ladder: when a request is rejected for a restricted account, the
// client retries with the next smaller set.
const (
	// AccountFieldsFull is the preferred account field set
	AccountFieldsFull = "id,username,name,profile_picture_url,followers_count,follows_count,media_count"
	// AccountFieldsBasic drops the counters that restricted accounts reject
	AccountFieldsBasic = "id,username,name,profile_picture_url"
	// AccountFieldsMinimal is the last set tried before synthesizing a username
	AccountFieldsMinimal = "id,username"

	// MediaFields is requested for every post
	MediaFields = "id,caption,media_type,media_url,thumbnail_url,permalink,timestamp,like_count,comments_count"
)

// Post insight metric names. Video and carousel media support extra
// metrics on top of the base set.
var (
	BaseInsightMetrics     = []string{"likes", "comments", "saved", "shares", "views", "reach", "total_interactions"}
	VideoInsightMetrics    = []string{"ig_reels_video_view_total_time", "ig_reels_avg_watch_time"}
	CarouselInsightMetrics = []string{"follows", "profile_visits", "profile_activity"}

	// AccountInsightMetrics backs the daily snapshot when the basic
	// field set returns zero counters for a restricted account.
	AccountInsightMetrics = []string{"follower_count"}
)

// Endpoints builds Graph API request URLs
type Endpoints struct {
	baseURL    string
	apiVersion string
}

// NewEndpoints creates an Endpoints for the given API host and version
func NewEndpoints(baseURL, apiVersion string) *Endpoints {
	return &Endpoints{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: apiVersion,
	}
}

// User returns the URL for a user node request
func (e *Endpoints) User(userID string, params url.Values) string {
	return e.build(userID, params)
}

// UserMedia returns the URL for a user's media edge
func (e *Endpoints) UserMedia(userID string, params url.Values) string {
	return e.build(userID+"/media", params)
}

// UserInsights returns the URL for account-level insights
func (e *Endpoints) UserInsights(userID string, params url.Values) string {
	return e.build(userID+"/insights", params)
}

// MediaInsights returns the URL for post-level insights
func (e *Endpoints) MediaInsights(mediaID string, params url.Values) string {
	return e.build(mediaID+"/insights", params)
}

// Me returns the URL for the token introspection request
func (e *Endpoints) Me(params url.Values) string {
	return e.build("me", params)
}

func (e *Endpoints) build(path string, params url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", e.baseURL, e.apiVersion, path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
