package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/ratelimit"
	"github.com/shintairiku/instagram-analysis/pkg/retry"
)

// defaultPageSize is how many media items are requested per page
const defaultPageSize = 25

// Client is the Instagram Graph API transport client. It classifies
// errors and follows pagination but never retries on its own; retry
// policy belongs to the orchestrators.
type Client struct {
	httpClient *http.Client
	endpoints  *Endpoints
	limiter    ratelimit.Limiter
	pagePause  time.Duration
	logger     logger.Logger
}

// NewClient creates a new Graph API client
func NewClient(cfg *config.GraphConfig, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoints: NewEndpoints(cfg.BaseURL, cfg.APIVersion),
		limiter:   limiter,
		pagePause: cfg.PagePause,
		logger:    log,
	}
}

// getJSON performs a GET request and decodes the response into target.
// The Graph API wraps failures in an error envelope with HTTP 400, so
// the body is inspected for it before the status code is considered.
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.ErrorWithFields("graph request failed", map[string]interface{}{
			"url":      req.URL.Redacted(),
			"error":    err.Error(),
			"duration": duration,
		})
		return errs.Newf(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("graph request completed", map[string]interface{}{
		"url":      req.URL.Redacted(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Newf(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return c.classifyAPIError(envelope.Error, resp)
	}

	if resp.StatusCode != http.StatusOK {
		return errs.Newf(errs.FromStatusCode(resp.StatusCode), resp.StatusCode,
			"unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse graph response", map[string]interface{}{
			"url":          req.URL.Redacted(),
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Newf(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// classifyAPIError maps Graph API error codes onto the error taxonomy.
// Code 190 is an invalid or expired token; 4, 17 and 32 are the
// platform's throttling codes.
func (c *Client) classifyAPIError(apiErr *APIError, resp *http.Response) error {
	c.logger.WarnWithFields("graph API error", map[string]interface{}{
		"code":       apiErr.Code,
		"subcode":    apiErr.ErrorSubcode,
		"type":       apiErr.Type,
		"message":    apiErr.Message,
		"fbtrace_id": apiErr.FBTraceID,
	})

	switch apiErr.Code {
	case 190:
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, apiErr.Message)
	case 4, 17, 32:
		retryAfter := time.Minute
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return errs.RateLimited(retryAfter, apiErr.Message)
	default:
		return errs.New(errs.ErrorTypeExternalAPI, resp.StatusCode, apiErr.Message)
	}
}

// GetBasicAccountData fetches the user node with the given field set
func (c *Client) GetBasicAccountData(ctx context.Context, userID, accessToken, fields string) (*AccountData, error) {
	params := url.Values{}
	params.Set("fields", fields)
	params.Set("access_token", accessToken)

	var account AccountData
	if err := c.getJSON(ctx, c.endpoints.User(userID, params), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetInsightsMetrics fetches account-level insight metrics for the
// given period and returns them keyed by metric name.
func (c *Client) GetInsightsMetrics(ctx context.Context, userID, accessToken string, metrics []string, period string) (map[string]int64, error) {
	params := url.Values{}
	params.Set("metric", strings.Join(metrics, ","))
	params.Set("period", period)
	params.Set("access_token", accessToken)

	var resp InsightsResponse
	if err := c.getJSON(ctx, c.endpoints.UserInsights(userID, params), &resp); err != nil {
		return nil, err
	}
	return NormalizeMetrics(&resp), nil
}

// GetPostInsights fetches post-level insight metrics appropriate for
// the media type. When the extended metric set for videos or carousels
// is rejected, the request is retried once with the base set so that a
// post still gets a metrics row.
func (c *Client) GetPostInsights(ctx context.Context, mediaID, accessToken, mediaType string) (map[string]int64, error) {
	metrics := InsightMetricsFor(mediaType)

	result, err := c.fetchMediaInsights(ctx, mediaID, accessToken, metrics)
	if err != nil && errs.Is(err, errs.ErrorTypeExternalAPI) && len(metrics) > len(BaseInsightMetrics) {
		c.logger.WarnWithFields("extended insight metrics rejected, retrying with base set", map[string]interface{}{
			"media_id":   mediaID,
			"media_type": mediaType,
		})
		return c.fetchMediaInsights(ctx, mediaID, accessToken, BaseInsightMetrics)
	}
	return result, err
}

func (c *Client) fetchMediaInsights(ctx context.Context, mediaID, accessToken string, metrics []string) (map[string]int64, error) {
	params := url.Values{}
	params.Set("metric", strings.Join(metrics, ","))
	params.Set("access_token", accessToken)

	var resp InsightsResponse
	if err := c.getJSON(ctx, c.endpoints.MediaInsights(mediaID, params), &resp); err != nil {
		return nil, err
	}
	return NormalizeMetrics(&resp), nil
}

// GetPostsSince fetches posts newer than since, newest first. Pages
// arrive in descending timestamp order, so pagination stops at the
// first post older than the cutoff. maxPosts of 0 means no cap.
func (c *Client) GetPostsSince(ctx context.Context, userID, accessToken string, since time.Time, maxPosts int) ([]Media, error) {
	firstURL := c.mediaURL(userID, accessToken)

	posts, err := c.fetchMediaPages(ctx, firstURL, maxPosts, func(m Media) bool {
		postedAt := m.PostedAt()
		return postedAt != nil && postedAt.Before(since)
	})
	if err != nil {
		return nil, err
	}

	// drop anything at or past the cutoff that slipped into the last page
	filtered := posts[:0]
	for _, p := range posts {
		if postedAt := p.PostedAt(); postedAt != nil && !postedAt.Before(since) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// FetchAllPosts walks the entire media edge. maxPosts of 0 means no cap.
func (c *Client) FetchAllPosts(ctx context.Context, userID, accessToken string, maxPosts int) ([]Media, error) {
	return c.fetchMediaPages(ctx, c.mediaURL(userID, accessToken), maxPosts, nil)
}

func (c *Client) mediaURL(userID, accessToken string) string {
	params := url.Values{}
	params.Set("fields", MediaFields)
	params.Set("limit", strconv.Itoa(defaultPageSize))
	params.Set("access_token", accessToken)
	return c.endpoints.UserMedia(userID, params)
}

// fetchMediaPages follows paging.next until the edge is exhausted, the
// cap is reached, or stop returns true for a post. The next URL is
// opaque and followed as-is.
func (c *Client) fetchMediaPages(ctx context.Context, firstURL string, maxPosts int, stop func(Media) bool) ([]Media, error) {
	var posts []Media
	nextURL := firstURL
	page := 0

	for nextURL != "" {
		if page > 0 {
			if err := retry.Wait(ctx, c.pagePause); err != nil {
				return nil, err
			}
		}
		page++

		var list MediaList
		if err := c.getJSON(ctx, nextURL, &list); err != nil {
			return nil, err
		}

		for _, media := range list.Data {
			if stop != nil && stop(media) {
				return posts, nil
			}
			posts = append(posts, media)
			if maxPosts > 0 && len(posts) >= maxPosts {
				return posts, nil
			}
		}

		nextURL = list.Paging.Next
	}

	c.logger.DebugWithFields("media edge exhausted", map[string]interface{}{
		"pages": page,
		"posts": len(posts),
	})
	return posts, nil
}

// ValidateAccessToken checks that a token is usable by requesting the
// token owner's id and username.
func (c *Client) ValidateAccessToken(ctx context.Context, accessToken string) (*TokenInfo, error) {
	params := url.Values{}
	params.Set("fields", "id,username")
	params.Set("access_token", accessToken)

	var info TokenInfo
	if err := c.getJSON(ctx, c.endpoints.Me(params), &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, errs.New(errs.ErrorTypeAuth, 0, "token introspection returned no user id")
	}
	return &info, nil
}

// AccountDetailsWithFallback fetches account details walking the field
// set ladder. Restricted accounts reject counter fields with an API
// error; each rejection moves to a smaller set. When even the minimal
// set fails the account still gets a synthesized username derived from
// the user id, so downstream rows are never left without one.
func (c *Client) AccountDetailsWithFallback(ctx context.Context, userID, accessToken string) (*AccountData, error) {
	ladder := []string{AccountFieldsFull, AccountFieldsBasic, AccountFieldsMinimal}

	var lastErr error
	for _, fields := range ladder {
		account, err := c.GetBasicAccountData(ctx, userID, accessToken, fields)
		if err == nil {
			if account.Username == "" {
				account.Username = synthesizedUsername(userID)
			}
			return account, nil
		}
		if errs.Is(err, errs.ErrorTypeAuth) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		c.logger.WarnWithFields("account field set rejected, trying smaller set", map[string]interface{}{
			"user_id": userID,
			"fields":  fields,
			"error":   err.Error(),
		})
	}

	c.logger.WarnWithFields("all account field sets rejected, synthesizing username", map[string]interface{}{
		"user_id": userID,
		"error":   lastErr.Error(),
	})
	return &AccountData{
		ID:       userID,
		Username: synthesizedUsername(userID),
	}, nil
}

// synthesizedUsername derives a placeholder username from the last
// eight characters of the user id.
func synthesizedUsername(userID string) string {
	suffix := userID
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return fmt.Sprintf("user_%s", suffix)
}
