// Package runlog records one audit document per collection run in the
// system_logs collection.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"trends-go/pkg/docstore"
	"trends-go/pkg/logger"
)

// Collection holds one document per run, keyed by run id.
const Collection = "system_logs"

// Status of a run.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrNotStarted is reported when finishing a run that is no longer started.
	ErrNotStarted = errors.New("runlog: run is not in started state")
	// ErrInvalidStatus is reported when finishing a run with a non-terminal status.
	ErrInvalidStatus = errors.New("runlog: status is not terminal")
)

// Run is the audit record of one collection run.
type Run struct {
	ID             string     `json:"id"`
	Task           string     `json:"task"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         Status     `json:"status"`
	ProcessedCount int        `json:"processed_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// Outcome is the terminal state reported by a collector.
type Outcome struct {
	Status    Status
	Processed int
	Error     string
	Message   string
}

// Query narrows ListRuns. Zero fields match everything.
type Query struct {
	Task   string
	Status Status
	Limit  int
}

// Manager creates and finalizes runs.
type Manager struct {
	store docstore.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewManager returns a Manager writing to store.
func NewManager(store docstore.Store) *Manager {
	return &Manager{
		store: store,
		log:   logger.GetLogger().WithField("component", "runlog"),
		now:   time.Now,
	}
}

// StartRun creates a started run and returns its id. Store errors are
// returned so the caller can abort before doing uncounted work.
func (m *Manager) StartRun(ctx context.Context, task, message string) (string, error) {
	run := Run{
		ID:        uuid.NewString(),
		Task:      task,
		StartTime: m.now().UTC(),
		Status:    StatusStarted,
		Message:   message,
	}

	if err := m.store.Set(ctx, Collection, run.ID, run); err != nil {
		return "", fmt.Errorf("start run for %s: %w", task, err)
	}

	m.log.WithRun(run.ID, task).Info("Run started")
	return run.ID, nil
}

// FinishRun moves a started run to a terminal status. Failures are logged and
// leave the run in started state.
func (m *Manager) FinishRun(ctx context.Context, runID string, out Outcome) {
	log := m.log.WithFields(map[string]interface{}{
		"run_id":          runID,
		"status":          string(out.Status),
		"processed_count": out.Processed,
	})

	if err := m.finish(ctx, runID, out); err != nil {
		log.WithError(err).Error("Failed to finalize run")
		return
	}

	if out.Error != "" {
		log.WithField("error_message", out.Error).Warn("Run finished with error")
		return
	}
	log.Info("Run finished")
}

func (m *Manager) finish(ctx context.Context, runID string, out Outcome) error {
	if !out.Status.Terminal() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, out.Status)
	}

	fields := map[string]any{
		"end_time":        m.now().UTC(),
		"status":          out.Status,
		"processed_count": out.Processed,
	}
	if out.Error != "" {
		fields["error_message"] = out.Error
	}
	if out.Message != "" {
		fields["message"] = out.Message
	}

	err := m.store.Update(ctx, Collection, runID, fields, docstore.Where("status", StatusStarted))
	if errors.Is(err, docstore.ErrPrecondition) {
		return ErrNotStarted
	}
	return err
}

// GetRun returns a run by id. Unknown ids yield docstore.ErrNotFound.
func (m *Manager) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := m.store.Get(ctx, Collection, runID, &run); err != nil {
		return nil, err
	}
	run.ID = runID
	return &run, nil
}

// ListRuns returns matching runs, most recent first.
func (m *Manager) ListRuns(ctx context.Context, q Query) ([]Run, error) {
	var filters []docstore.Filter
	if q.Task != "" {
		filters = append(filters, docstore.Where("task", q.Task))
	}
	if q.Status != "" {
		filters = append(filters, docstore.Where("status", q.Status))
	}

	docs, err := m.store.Find(ctx, Collection, filters...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]Run, 0, len(docs))
	for _, doc := range docs {
		var run Run
		if err := doc.Decode(&run); err != nil {
			m.log.WithError(err).WithField("run_id", doc.ID).Warn("Skipping unreadable run")
			continue
		}
		run.ID = doc.ID
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	if q.Limit > 0 && len(runs) > q.Limit {
		runs = runs[:q.Limit]
	}
	return runs, nil
}

// Stuck returns runs still started after olderThan, oldest first.
func (m *Manager) Stuck(ctx context.Context, olderThan time.Duration) ([]Run, error) {
	runs, err := m.ListRuns(ctx, Query{Status: StatusStarted})
	if err != nil {
		return nil, err
	}

	cutoff := m.now().Add(-olderThan)
	stuck := make([]Run, 0)
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].StartTime.Before(cutoff) {
			stuck = append(stuck, runs[i])
		}
	}
	return stuck, nil
}
