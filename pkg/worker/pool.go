// Package worker runs background collection tasks on a fixed set of
// goroutines. Tasks are not durable: queued work is lost on process exit.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"trends-go/pkg/logger"
)

var (
	ErrNotStarted = errors.New("worker pool not started")
	ErrStopped    = errors.New("worker pool is stopped")
	ErrQueueFull  = errors.New("task queue is full")
)

// Task represents a unit of work to be executed
type Task struct {
	ID      string
	Kind    string
	Fn      func(ctx context.Context) error
	Timeout time.Duration
}

// Config holds configuration for the worker pool
type Config struct {
	MaxWorkers      int           `mapstructure:"max_workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns the pool settings used when nothing is configured.
// Collections are long and rate limited, so few workers are enough.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}
	return Config{
		MaxWorkers:      workers,
		QueueSize:       32,
		TaskTimeout:     2 * time.Hour,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Pool manages a pool of goroutines for background task execution
type Pool struct {
	config    Config
	taskQueue chan Task
	workers   []*worker
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logger.Logger
	metrics   *PoolMetrics

	// mu guards started/stopped and the queue close.
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewPool creates a new worker pool with the given configuration
func NewPool(config Config) *Pool {
	def := DefaultConfig()
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = def.MaxWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = def.TaskTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
		workers:   make([]*worker, 0, config.MaxWorkers),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.GetLogger().WithField("component", "worker_pool"),
		metrics:   NewPoolMetrics(),
	}
}

// Start initializes and starts all workers
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if p.stopped {
		return ErrStopped
	}
	p.started = true

	p.log.WithField("max_workers", p.config.MaxWorkers).Info("Starting worker pool")
	for i := 0; i < p.config.MaxWorkers; i++ {
		w := newWorker(i, p.taskQueue, p.config.TaskTimeout, p.log, p.metrics)
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.start(p.ctx)
		}()
	}
	return nil
}

// Submit queues a task without blocking. A full queue is reported as
// ErrQueueFull.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}
	if !p.started {
		return ErrNotStarted
	}
	if task.Timeout == 0 {
		task.Timeout = p.config.TaskTimeout
	}

	select {
	case p.taskQueue <- task:
		p.metrics.IncrementTasksSubmitted()
		return nil
	default:
		p.metrics.IncrementTasksRejected()
		return ErrQueueFull
	}
}

// SubmitFunc is a convenience method to submit a function as a task
func (p *Pool) SubmitFunc(id string, fn func(ctx context.Context) error) error {
	return p.Submit(Task{ID: id, Fn: fn})
}

// Stop stops accepting tasks and waits for queued and running ones. Tasks
// still running after the shutdown timeout have their context cancelled.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.log.Info("Stopping worker pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.config.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		p.log.Info("Worker pool stopped gracefully")
	case <-timer.C:
		p.log.Warn("Worker pool shutdown timeout exceeded, cancelling running tasks")
		p.cancel()
		<-done
	}
	p.cancel()
	return nil
}

// Metrics returns a snapshot of pool counters and current load.
func (p *Pool) Metrics() MetricsSnapshot {
	snap := p.metrics.GetSnapshot()
	snap.QueueLength = len(p.taskQueue)
	snap.ActiveWorkers = p.ActiveWorkers()
	snap.Workers = p.config.MaxWorkers
	return snap
}

// ActiveWorkers returns number of workers currently running a task
func (p *Pool) ActiveWorkers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	active := 0
	for _, w := range p.workers {
		if w.isActive() {
			active++
		}
	}
	return active
}
