package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/retry"
)

// Client is a PostgREST storage client. Repositories build queries
// through From and never assemble request URLs themselves.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
	logger     logger.Logger
}

// NewClient creates a storage client for the configured PostgREST endpoint
func NewClient(cfg *config.StorageConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     log,
	}
}

// From starts a query against a table
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// Insert creates a new row. When out is non-nil the created row is
// decoded into it.
func (c *Client) Insert(ctx context.Context, table string, record interface{}, out interface{}) error {
	body, err := json.Marshal(record)
	if err != nil {
		return errs.Newf(errs.ErrorTypeParsing, 0, "failed to encode record: %v", err)
	}

	return c.do(ctx, http.MethodPost, c.baseURL+"/"+table, body, "return=representation", out)
}

// Upsert creates or merges a row keyed by the onConflict column list.
func (c *Client) Upsert(ctx context.Context, table string, record interface{}, onConflict string, out interface{}) error {
	body, err := json.Marshal(record)
	if err != nil {
		return errs.Newf(errs.ErrorTypeParsing, 0, "failed to encode record: %v", err)
	}

	u := fmt.Sprintf("%s/%s?on_conflict=%s", c.baseURL, table, onConflict)
	return c.do(ctx, http.MethodPost, u, body, "resolution=merge-duplicates,return=representation", out)
}

// do sends one storage request, retrying transient failures. The body
// is kept as bytes so retries can replay it.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, prefer string, out interface{}) error {
	op := func() error {
		return c.doOnce(ctx, method, rawURL, body, prefer, out)
	}

	return retry.Do(op, &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     &retry.ConstantBackoff{Delay: c.retryDelay},
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.logger,
	})
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, body []byte, prefer string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Newf(errs.ErrorTypeNetwork, 0, "storage request failed: %v", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("storage request completed", map[string]interface{}{
		"method":   method,
		"url":      req.URL.Redacted(),
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Newf(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if resp.StatusCode >= 400 {
		snippet := string(respBody)
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return errs.Newf(errs.FromStatusCode(resp.StatusCode), resp.StatusCode,
			"storage returned %d: %s", resp.StatusCode, snippet)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errs.Newf(errs.ErrorTypeParsing, resp.StatusCode, "failed to decode response: %v", err)
		}
	}

	return nil
}
