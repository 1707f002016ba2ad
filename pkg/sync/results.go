package sync

import (
	"time"

	"github.com/shintairiku/instagram-analysis/pkg/models"
)

// DataSummary captures how much data one account produced during a run
type DataSummary struct {
	PostsSaved     int  `json:"posts_saved"`
	MetricsSaved   int  `json:"metrics_saved"`
	DailyStatSaved bool `json:"daily_stat_saved"`
}

// CollectionResult is the per-account outcome of a daily run. Failures
// carry the error message; one account failing never aborts the run.
type CollectionResult struct {
	Success         bool         `json:"success"`
	AccountID       string       `json:"account_id"`
	InstagramUserID string       `json:"instagram_user_id"`
	Username        string       `json:"username,omitempty"`
	CollectedAt     time.Time    `json:"collected_at"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	Data            *DataSummary `json:"data,omitempty"`
}

// DailySummary is the outcome of one daily collection run
type DailySummary struct {
	RunID              string             `json:"run_id"`
	TargetDate         models.Date        `json:"target_date"`
	DryRun             bool               `json:"dry_run,omitempty"`
	TotalAccounts      int                `json:"total_accounts"`
	SuccessfulAccounts int                `json:"successful_accounts"`
	FailedAccounts     int                `json:"failed_accounts"`
	Results            []CollectionResult `json:"results"`
	StartedAt          time.Time          `json:"started_at"`
	CompletedAt        time.Time          `json:"completed_at"`
	DurationSeconds    float64            `json:"duration_seconds"`
}

// RecentSyncResult is the outcome of an on-demand account refresh
type RecentSyncResult struct {
	AccountID       string    `json:"account_id"`
	InstagramUserID string    `json:"instagram_user_id"`
	WindowDays      int       `json:"window_days"`
	DryRun          bool      `json:"dry_run,omitempty"`
	PostsFound      int       `json:"posts_found"`
	PostsSaved      int       `json:"posts_saved"`
	MetricsSaved    int       `json:"metrics_saved"`
	SyncedAt        time.Time `json:"synced_at"`
}

// BackfillResult is the outcome of a historical collection run
type BackfillResult struct {
	AccountID      string    `json:"account_id"`
	StartDate      string    `json:"start_date,omitempty"`
	EndDate        string    `json:"end_date,omitempty"`
	TotalPosts     int       `json:"total_posts"`
	SkippedPosts   int       `json:"skipped_posts"`
	SavedPosts     int       `json:"saved_posts"`
	SavedMetrics   int       `json:"saved_metrics"`
	FailedPosts    int       `json:"failed_posts"`
	Resumed        bool      `json:"resumed"`
	CompletedAt    time.Time `json:"completed_at"`
	DurationSecond float64   `json:"duration_seconds"`
}

// RepairResult is the outcome of a missing-metrics repair pass
type RepairResult struct {
	AccountID     string    `json:"account_id"`
	PostsExamined int       `json:"posts_examined"`
	PostsMissing  int       `json:"posts_missing"`
	MetricsSaved  int       `json:"metrics_saved"`
	FailedPosts   int       `json:"failed_posts"`
	CompletedAt   time.Time `json:"completed_at"`
}

// DetectionResult is the outcome of one new-post detection sweep
type DetectionResult struct {
	AccountsChecked int       `json:"accounts_checked"`
	NewPosts        int       `json:"new_posts"`
	PostsSaved      int       `json:"posts_saved"`
	MetricsSaved    int       `json:"metrics_saved"`
	FailedAccounts  int       `json:"failed_accounts"`
	CompletedAt     time.Time `json:"completed_at"`
}
