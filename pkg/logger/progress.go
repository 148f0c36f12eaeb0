package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressReporter logs how far a collection run has advanced through its
// term list. Reports are throttled to one per interval, plus a final one.
type ProgressReporter struct {
	mu          sync.Mutex
	total       int
	attempted   int
	persisted   int
	description string
	interval    time.Duration
	startTime   time.Time
	lastUpdate  time.Time
	logger      *Logger
}

// NewProgressReporter creates a reporter for total items logged through log.
func NewProgressReporter(log *Logger, total int, description string) *ProgressReporter {
	now := time.Now()
	return &ProgressReporter{
		total:       total,
		description: description,
		interval:    5 * time.Second,
		startTime:   now,
		lastUpdate:  now,
		logger:      log,
	}
}

// Advance records attempted items and how many of them were persisted.
func (pr *ProgressReporter) Advance(attempted, persisted int) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.attempted += attempted
	pr.persisted += persisted

	now := time.Now()
	if now.Sub(pr.lastUpdate) >= pr.interval || pr.attempted >= pr.total {
		pr.report()
		pr.lastUpdate = now
	}
}

// Complete logs the final state regardless of throttling.
func (pr *ProgressReporter) Complete() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.report()
}

// Snapshot returns attempted, persisted and total counts.
func (pr *ProgressReporter) Snapshot() (attempted, persisted, total int) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.attempted, pr.persisted, pr.total
}

// report must be called with the lock held.
func (pr *ProgressReporter) report() {
	percentage := 100.0
	if pr.total > 0 {
		percentage = float64(pr.attempted) / float64(pr.total) * 100
	}

	pr.logger.WithFields(map[string]interface{}{
		"attempted": pr.attempted,
		"persisted": pr.persisted,
		"total":     pr.total,
		"elapsed":   time.Since(pr.startTime).Round(time.Millisecond).String(),
	}).Info(fmt.Sprintf("%s: %d/%d (%.1f%%)", pr.description, pr.attempted, pr.total, percentage))
}
