package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"trends-go/pkg/logger"
)

// worker represents a single worker goroutine
type worker struct {
	id        int
	taskQueue <-chan Task
	timeout   time.Duration
	log       *logger.Logger
	metrics   *PoolMetrics
	active    atomic.Bool
}

func newWorker(id int, taskQueue <-chan Task, timeout time.Duration, log *logger.Logger, metrics *PoolMetrics) *worker {
	return &worker{
		id:        id,
		taskQueue: taskQueue,
		timeout:   timeout,
		log:       log.WithField("worker_id", id),
		metrics:   metrics,
	}
}

// start drains the queue until it is closed.
func (w *worker) start(ctx context.Context) {
	w.log.Debug("Worker started")
	defer w.log.Debug("Worker stopped")

	for task := range w.taskQueue {
		w.processTask(ctx, task)
	}
}

// processTask executes a single task with timeout and panic recovery
func (w *worker) processTask(ctx context.Context, task Task) {
	w.active.Store(true)
	defer w.active.Store(false)

	log := w.log.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"kind":    task.Kind,
	})
	log.Debug("Processing task")

	timeout := task.Timeout
	if timeout == 0 {
		timeout = w.timeout
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := runTask(taskCtx, task, log)
	duration := time.Since(start)

	w.metrics.RecordTask(duration, err)
	if err != nil {
		log.WithError(err).WithField("duration", duration.String()).Warn("Task completed with error")
		return
	}
	log.WithField("duration", duration.String()).Debug("Task completed successfully")
}

func runTask(ctx context.Context, task Task, log *logger.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("Task panicked")
			err = &PanicError{Value: r}
		}
	}()
	return task.Fn(ctx)
}

func (w *worker) isActive() bool {
	return w.active.Load()
}

// PanicError wraps a panic value as an error
type PanicError struct {
	Value interface{}
}

func (pe *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", pe.Value)
}
