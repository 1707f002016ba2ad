package repository

import (
	"context"
	"time"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/storage"
)

const accountsTable = "instagram_accounts"

// AccountRepository persists Instagram accounts
type AccountRepository struct {
	storage *storage.Client
	logger  logger.Logger
}

// NewAccountRepository creates an AccountRepository
func NewAccountRepository(client *storage.Client, log logger.Logger) *AccountRepository {
	if log == nil {
		log = logger.GetLogger()
	}
	return &AccountRepository{storage: client, logger: log}
}

// GetActiveAccounts returns all accounts enabled for collection
func (r *AccountRepository) GetActiveAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.storage.From(accountsTable).
		Eq("is_active", "true").
		Order("created_at", false).
		Get(ctx, &accounts)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetByID returns the account with the given storage id
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	found, err := r.storage.From(accountsTable).Eq("id", id).Single(ctx, &account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Newf(errs.ErrorTypeNotFound, 404, "account %s not found", id)
	}
	return &account, nil
}

// GetByInstagramUserID returns the account with the given Graph API user id
func (r *AccountRepository) GetByInstagramUserID(ctx context.Context, instagramUserID string) (*models.Account, error) {
	var account models.Account
	found, err := r.storage.From(accountsTable).
		Eq("instagram_user_id", instagramUserID).
		Single(ctx, &account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Newf(errs.ErrorTypeNotFound, 404, "account with instagram user id %s not found", instagramUserID)
	}
	return &account, nil
}

// Upsert creates or updates an account keyed by instagram_user_id
func (r *AccountRepository) Upsert(ctx context.Context, account models.Account) (*models.Account, error) {
	var saved []models.Account
	if err := r.storage.Upsert(ctx, accountsTable, account, "instagram_user_id", &saved); err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, errs.New(errs.ErrorTypeServerError, 0, "upsert returned no rows")
	}
	return &saved[0], nil
}

// UpdateProfile refreshes the display fields picked up from the Graph API
func (r *AccountRepository) UpdateProfile(ctx context.Context, id, username, accountName, profilePictureURL string) error {
	patch := map[string]interface{}{
		"username":   username,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if accountName != "" {
		patch["account_name"] = accountName
	}
	if profilePictureURL != "" {
		patch["profile_picture_url"] = profilePictureURL
	}

	return r.storage.From(accountsTable).Eq("id", id).Update(ctx, patch, nil)
}

// TouchLastSynced records a successful sync time for the refresh rate guard
func (r *AccountRepository) TouchLastSynced(ctx context.Context, id string, at time.Time) error {
	patch := map[string]interface{}{
		"last_synced_at": at.UTC().Format(time.RFC3339),
	}
	return r.storage.From(accountsTable).Eq("id", id).Update(ctx, patch, nil)
}

// UpdateToken replaces the stored access credential and its expiry
func (r *AccountRepository) UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	patch := map[string]interface{}{
		"access_token_encrypted": accessToken,
		"token_expires_at":       expiresAt.UTC().Format(time.RFC3339),
		"updated_at":             time.Now().UTC().Format(time.RFC3339),
	}
	return r.storage.From(accountsTable).Eq("id", id).Update(ctx, patch, nil)
}

// SetActive toggles an account in or out of collection. Accounts are
// deactivated rather than deleted so their history stays queryable.
func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	patch := map[string]interface{}{
		"is_active":  active,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	return r.storage.From(accountsTable).Eq("id", id).Update(ctx, patch, nil)
}

// GetExpiringTokens returns active accounts whose credential expires
// within the given window, soonest expiry first
func (r *AccountRepository) GetExpiringTokens(ctx context.Context, within time.Duration) ([]models.Account, error) {
	cutoff := time.Now().UTC().Add(within)
	var accounts []models.Account
	err := r.storage.From(accountsTable).
		Eq("is_active", "true").
		Lte("token_expires_at", cutoff.Format(time.RFC3339)).
		Order("token_expires_at", false).
		Get(ctx, &accounts)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
