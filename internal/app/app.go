package app

import (
	"context"
	"errors"
	"fmt"

	"trends-go/internal/config"
	"trends-go/pkg/collector"
	"trends-go/pkg/compare"
	"trends-go/pkg/docstore"
	"trends-go/pkg/logger"
	"trends-go/pkg/runlog"
	"trends-go/pkg/scheduler"
	"trends-go/pkg/task"
	"trends-go/pkg/terms"
	"trends-go/pkg/trends"
	"trends-go/pkg/worker"
)

// App holds every long-lived component built from a Config.
type App struct {
	Config    *config.Config
	Store     docstore.Store
	Client    *trends.Client
	Runs      *runlog.Manager
	Terms     *terms.Repository
	Collector *collector.Collector
	Pool      *worker.Pool
	Tasks     *task.Service
	Compare   *compare.Service
	Scheduler *scheduler.Scheduler

	log *logger.Logger
}

// New opens the document store and wires the services on top of it. The
// scheduler is only built when enabled.
func New(cfg *config.Config) (*App, error) {
	store, err := docstore.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &App{
		Config: cfg,
		Store:  store,
		log:    logger.GetLogger().WithField("component", "app"),
	}
	a.Client = trends.NewClient(cfg.Trends)
	a.Runs = runlog.NewManager(store)
	a.Terms = terms.NewRepository(store)
	a.Collector = collector.New(store, a.Runs, cfg.Collector)
	a.Pool = worker.NewPool(cfg.Worker)
	a.Tasks = task.NewService(a.Client, a.Terms, a.Runs, a.Collector, a.Pool, cfg.Tasks)
	a.Compare = compare.NewService(a.Client, cfg.Tasks.DefaultGeo)

	if cfg.Scheduler.Enabled {
		a.Scheduler, err = scheduler.New(cfg.Scheduler, a.Tasks)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	a.log.WithFields(map[string]interface{}{
		"storage":   cfg.Storage.Driver,
		"workers":   cfg.Worker.MaxWorkers,
		"scheduler": cfg.Scheduler.Enabled,
	}).Info("Application wired")
	return a, nil
}

// Start launches the worker pool and, if configured, the scheduler.
func (a *App) Start() error {
	if err := a.Pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
	return nil
}

// Shutdown stops the scheduler first so no new runs are triggered, then
// drains the pool and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	if err := a.Pool.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
