package repository

import (
	"context"
	"time"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/storage"
)

const postsTable = "instagram_posts"

// PostRepository persists Instagram posts. Captions are truncated to
// the configured limit before they reach storage.
type PostRepository struct {
	storage      *storage.Client
	captionLimit int
	logger       logger.Logger
}

// NewPostRepository creates a PostRepository
func NewPostRepository(client *storage.Client, captionLimit int, log logger.Logger) *PostRepository {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PostRepository{storage: client, captionLimit: captionLimit, logger: log}
}

// Upsert creates or updates a post keyed by instagram_post_id and
// returns the stored row, so callers learn the storage id needed for
// metric rows.
func (r *PostRepository) Upsert(ctx context.Context, post models.Post) (*models.Post, error) {
	post.Caption = truncateCaption(post.Caption, r.captionLimit)

	var saved []models.Post
	if err := r.storage.Upsert(ctx, postsTable, post, "instagram_post_id", &saved); err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, errs.New(errs.ErrorTypeServerError, 0, "post upsert returned no rows")
	}
	return &saved[0], nil
}

// GetByInstagramPostID returns the stored post for a Graph API media id,
// or nil when the post is unknown.
func (r *PostRepository) GetByInstagramPostID(ctx context.Context, instagramPostID string) (*models.Post, error) {
	var post models.Post
	found, err := r.storage.From(postsTable).
		Eq("instagram_post_id", instagramPostID).
		Single(ctx, &post)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &post, nil
}

// ListByAccountSince returns an account's posts newer than since,
// newest first.
func (r *PostRepository) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]models.Post, error) {
	var posts []models.Post
	err := r.storage.From(postsTable).
		Eq("account_id", accountID).
		Gte("posted_at", since.UTC().Format(time.RFC3339)).
		Order("posted_at", true).
		Get(ctx, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func truncateCaption(caption string, limit int) string {
	if limit <= 0 || len(caption) <= limit {
		return caption
	}
	// cut on a rune boundary; captions are usually multibyte
	runes := []rune(caption)
	if len(runes) <= limit {
		return caption
	}
	return string(runes[:limit])
}
