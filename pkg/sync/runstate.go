package sync

import (
	"fmt"
	gosync "sync"
	"time"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/models"
)

// RunStatus describes where the daily collection run currently is
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunState is the injected guard ensuring at most one daily collection
// runs per process. Acquisition is atomic: the loser of a race gets a
// conflict error, never a queue slot.
type RunState struct {
	mu      gosync.Mutex
	running bool

	runID      string
	targetDate models.Date
	startedAt  time.Time

	lastStatus  RunStatus
	lastSummary *DailySummary
}

// NewRunState creates an idle RunState
func NewRunState() *RunState {
	return &RunState{lastStatus: RunStatusIdle}
}

// TryAcquire claims the run slot. It fails with a conflict error when a
// run is already in flight.
func (s *RunState) TryAcquire(runID string, target models.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errs.Newf(errs.ErrorTypeConflict, 409,
			"daily collection %s already running since %s", s.runID, s.startedAt.Format(time.RFC3339))
	}

	s.running = true
	s.runID = runID
	s.targetDate = target
	s.startedAt = time.Now().UTC()
	s.lastStatus = RunStatusRunning
	return nil
}

// Release ends the run, recording its summary for later status queries
func (s *RunState) Release(summary *DailySummary, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.lastSummary = summary
	if runErr != nil {
		s.lastStatus = RunStatusFailed
	} else {
		s.lastStatus = RunStatusCompleted
	}
}

// StateSnapshot is a point-in-time view of the run state
type StateSnapshot struct {
	Status      RunStatus     `json:"status"`
	RunID       string        `json:"run_id,omitempty"`
	TargetDate  string        `json:"target_date,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	LastSummary *DailySummary `json:"last_summary,omitempty"`
}

// Snapshot returns the current state for the status endpoint
func (s *RunState) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StateSnapshot{
		Status:      s.lastStatus,
		LastSummary: s.lastSummary,
	}
	if s.running {
		snap.Status = RunStatusRunning
		snap.RunID = s.runID
		snap.TargetDate = s.targetDate.String()
		startedAt := s.startedAt
		snap.StartedAt = &startedAt
	}
	return snap
}

// AccountLocks provides per-account mutual exclusion for on-demand
// refreshes. Independent accounts may refresh concurrently; the same
// account may not.
type AccountLocks struct {
	mu   gosync.Mutex
	held map[string]time.Time
}

// NewAccountLocks creates an empty lock set
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{held: make(map[string]time.Time)}
}

// TryAcquire claims the lock for an account, failing with a conflict
// error when a refresh for it is already in flight.
func (l *AccountLocks) TryAcquire(accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if since, ok := l.held[accountID]; ok {
		return errs.New(errs.ErrorTypeConflict, 409,
			fmt.Sprintf("refresh for account %s already running since %s", accountID, since.Format(time.RFC3339)))
	}
	l.held[accountID] = time.Now().UTC()
	return nil
}

// Release frees the lock for an account
func (l *AccountLocks) Release(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, accountID)
}
