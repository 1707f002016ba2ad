// Package checkpoint persists backfill progress so an interrupted
// historical collection can resume without refetching processed posts.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/shintairiku/instagram-analysis/pkg/logger"
)

// Checkpoint is the durable state of one historical collection run
type Checkpoint struct {
	AccountID      string          `json:"account_id"`
	StartDate      string          `json:"start_date,omitempty"`
	EndDate        string          `json:"end_date,omitempty"`
	ProcessedPosts map[string]bool `json:"processed_posts"` // instagram post id -> done
	TotalPosts     int             `json:"total_posts"`
	SavedPosts     int             `json:"saved_posts"`
	SavedMetrics   int             `json:"saved_metrics"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// Manager handles checkpoint operations for one account
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager rooted at dir
func NewManager(dir, accountID string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("backfill_%s.json", accountID)),
		logger:         logger.GetLogger(),
	}, nil
}

// Create starts a fresh checkpoint for a backfill run
func (m *Manager) Create(accountID, startDate, endDate string) (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		AccountID:      accountID,
		StartDate:      startDate,
		EndDate:        endDate,
		ProcessedPosts: make(map[string]bool),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
		Version:        1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("backfill checkpoint created", map[string]interface{}{
		"account_id": accountID,
		"path":       m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint, returning nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.ProcessedPosts == nil {
		checkpoint.ProcessedPosts = make(map[string]bool)
	}

	m.logger.InfoWithFields("backfill checkpoint loaded", map[string]interface{}{
		"account_id":      checkpoint.AccountID,
		"processed_posts": len(checkpoint.ProcessedPosts),
		"updated_at":      checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically via a temp file rename
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Delete removes the checkpoint file once a run completes
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// MarkProcessed records a post as fully handled and persists the state
func (m *Manager) MarkProcessed(checkpoint *Checkpoint, instagramPostID string, metricsSaved bool) error {
	checkpoint.ProcessedPosts[instagramPostID] = true
	checkpoint.SavedPosts++
	if metricsSaved {
		checkpoint.SavedMetrics++
	}
	return m.Save(checkpoint)
}

// IsProcessed reports whether a post was already handled in a previous run
func (c *Checkpoint) IsProcessed(instagramPostID string) bool {
	return c.ProcessedPosts[instagramPostID]
}
