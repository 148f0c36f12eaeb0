package worker

import (
	"sync/atomic"
	"time"
)

// PoolMetrics tracks worker pool counters
type PoolMetrics struct {
	tasksSubmitted atomic.Uint64
	tasksCompleted atomic.Uint64
	tasksFailed    atomic.Uint64
	tasksRejected  atomic.Uint64

	totalDuration atomic.Uint64 // in nanoseconds
	maxDuration   atomic.Uint64 // in nanoseconds

	startTime time.Time
}

// NewPoolMetrics creates a new metrics instance
func NewPoolMetrics() *PoolMetrics {
	return &PoolMetrics{startTime: time.Now()}
}

func (pm *PoolMetrics) IncrementTasksSubmitted() {
	pm.tasksSubmitted.Add(1)
}

func (pm *PoolMetrics) IncrementTasksRejected() {
	pm.tasksRejected.Add(1)
}

// RecordTask records the outcome and duration of a finished task.
func (pm *PoolMetrics) RecordTask(duration time.Duration, err error) {
	if err != nil {
		pm.tasksFailed.Add(1)
	} else {
		pm.tasksCompleted.Add(1)
	}

	nanos := uint64(duration.Nanoseconds())
	pm.totalDuration.Add(nanos)
	for {
		current := pm.maxDuration.Load()
		if nanos <= current || pm.maxDuration.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// GetSnapshot returns a snapshot of current metrics
func (pm *PoolMetrics) GetSnapshot() MetricsSnapshot {
	completed := pm.tasksCompleted.Load()
	failed := pm.tasksFailed.Load()

	var avg time.Duration
	if finished := completed + failed; finished > 0 {
		avg = time.Duration(pm.totalDuration.Load() / finished)
	}

	return MetricsSnapshot{
		TasksSubmitted:  pm.tasksSubmitted.Load(),
		TasksCompleted:  completed,
		TasksFailed:     failed,
		TasksRejected:   pm.tasksRejected.Load(),
		AverageDuration: avg.String(),
		MaxDuration:     time.Duration(pm.maxDuration.Load()).String(),
		Uptime:          time.Since(pm.startTime).Round(time.Second).String(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Workers         int    `json:"workers"`
	ActiveWorkers   int    `json:"active_workers"`
	QueueLength     int    `json:"queue_length"`
	TasksSubmitted  uint64 `json:"tasks_submitted"`
	TasksCompleted  uint64 `json:"tasks_completed"`
	TasksFailed     uint64 `json:"tasks_failed"`
	TasksRejected   uint64 `json:"tasks_rejected"`
	AverageDuration string `json:"average_duration"`
	MaxDuration     string `json:"max_duration"`
	Uptime          string `json:"uptime"`
}
