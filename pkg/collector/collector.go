// Package collector fetches trends data for a run's terms and appends the
// results to the document store.
//
// Calls to the source are strictly sequential and paced by fixed pauses. A
// rate-limited batch or term is abandoned for the rest of the run.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trends-go/pkg/batch"
	"trends-go/pkg/docstore"
	"trends-go/pkg/logger"
	"trends-go/pkg/runlog"
	"trends-go/pkg/trends"
)

// Config controls batching and pacing.
type Config struct {
	BatchSize int           `mapstructure:"batch_size"`
	Interval  time.Duration `mapstructure:"interval"`
	Backoff   time.Duration `mapstructure:"backoff"`
}

// DefaultConfig returns the pacing the source tolerates.
func DefaultConfig() Config {
	return Config{
		BatchSize: batch.TermLimit,
		Interval:  time.Second,
		Backoff:   10 * time.Second,
	}
}

// RunFinisher finalizes runs.
type RunFinisher interface {
	FinishRun(ctx context.Context, runID string, out runlog.Outcome)
}

// Job is one run's work.
type Job struct {
	RunID     string
	Terms     []string
	Timeframe string
	Geo       string
}

// Collector runs interest and rising-query collections.
type Collector struct {
	store docstore.Store
	runs  RunFinisher
	cfg   Config
	log   *logger.Logger
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option customises a Collector.
type Option func(*Collector)

// WithSleep replaces the pause function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Collector) {
		c.sleep = sleep
	}
}

// WithLogger replaces the collector's logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Collector) {
		c.log = log
	}
}

// New returns a Collector.
func New(store docstore.Store, runs RunFinisher, cfg Config, opts ...Option) *Collector {
	if cfg.BatchSize <= 0 || cfg.BatchSize > batch.TermLimit {
		cfg.BatchSize = batch.TermLimit
	}

	c := &Collector{
		store: store,
		runs:  runs,
		cfg:   cfg,
		log:   logger.GetLogger().WithField("component", "collector"),
		sleep: sleepContext,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectInterest fetches interest over time batch by batch, stores one
// record per term that came back with a column, and finalizes the run.
func (c *Collector) CollectInterest(ctx context.Context, src trends.Source, job Job) runlog.Outcome {
	log := c.log.WithRun(job.RunID, TypeInterestOverTime)
	progress := logger.NewProgressReporter(log, len(job.Terms), "interest collection")

	out := c.guard(ctx, job.RunID, func(processed *int) error {
		batches := batch.Create(job.Terms, c.cfg.BatchSize)
		for i, terms := range batches {
			persisted := c.interestBatch(ctx, log.WithField("batch", i+1), src, job, terms)
			*processed += persisted
			progress.Advance(len(terms), persisted)

			if err := c.sleep(ctx, c.cfg.Interval); err != nil {
				return err
			}
		}
		return nil
	})
	progress.Complete()
	return out
}

func (c *Collector) interestBatch(ctx context.Context, log *logger.Logger, src trends.Source, job Job, terms []string) int {
	table, err := src.InterestOverTime(ctx, terms, job.Timeframe, job.Geo)
	if err != nil {
		c.handleSourceError(ctx, log.WithField("terms", terms), err)
		return 0
	}
	if table.Empty() {
		log.WithField("terms", terms).Warn("No interest data returned for batch")
		return 0
	}

	persisted := 0
	for _, term := range terms {
		if !table.HasColumn(term) {
			log.WithField("term", term).Warn("Term missing from interest table")
			continue
		}

		record := InterestRecord{
			Term:      term,
			Geo:       job.Geo,
			Type:      TypeInterestOverTime,
			Timeframe: job.Timeframe,
			RunID:     job.RunID,
			CreatedAt: c.now().UTC(),
			Data:      interestPoints(table, term),
		}
		if _, err := c.store.Add(ctx, Collection, record); err != nil {
			log.WithError(err).WithField("term", term).Error("Failed to store interest record")
			continue
		}
		persisted++
	}
	return persisted
}

// CollectRising fetches rising related queries one term at a time and stores
// a record for each term with a non-empty result, then finalizes the run.
func (c *Collector) CollectRising(ctx context.Context, src trends.Source, job Job) runlog.Outcome {
	log := c.log.WithRun(job.RunID, TypeRisingQueries)
	progress := logger.NewProgressReporter(log, len(job.Terms), "rising collection")

	out := c.guard(ctx, job.RunID, func(processed *int) error {
		for _, term := range job.Terms {
			persisted := c.risingTerm(ctx, log.WithField("term", term), src, job, term)
			*processed += persisted
			progress.Advance(1, persisted)

			if err := c.sleep(ctx, c.cfg.Interval); err != nil {
				return err
			}
		}
		return nil
	})
	progress.Complete()
	return out
}

func (c *Collector) risingTerm(ctx context.Context, log *logger.Logger, src trends.Source, job Job, term string) int {
	queries, err := src.RisingQueries(ctx, term, job.Timeframe, job.Geo)
	if err != nil {
		c.handleSourceError(ctx, log, err)
		return 0
	}
	if len(queries) == 0 {
		log.Debug("No rising queries for term")
		return 0
	}

	record := RisingQueryRecord{
		Term:      term,
		Geo:       job.Geo,
		Type:      TypeRisingQueries,
		Timeframe: job.Timeframe,
		RunID:     job.RunID,
		CreatedAt: c.now().UTC(),
		Data:      risingPoints(queries),
	}
	if _, err := c.store.Add(ctx, Collection, record); err != nil {
		log.WithError(err).Error("Failed to store rising queries record")
		return 0
	}
	return 1
}

// handleSourceError logs a failed call and backs off when the source asked
// us to slow down. The batch or term is not retried.
func (c *Collector) handleSourceError(ctx context.Context, log *logger.Logger, err error) {
	if !trends.IsRateLimited(err) {
		log.WithError(err).Error("Trends request failed, skipping")
		return
	}

	log.WithError(err).WithField("backoff", c.cfg.Backoff.String()).Warn("Rate limited by trends source, skipping")
	// A cancelled pause surfaces at the next interval sleep.
	_ = c.sleep(ctx, c.cfg.Backoff)
}

// guard runs the collection loop and finalizes the run. A panic or an
// interrupted pause turns into a failed run instead of escaping.
func (c *Collector) guard(ctx context.Context, runID string, loop func(processed *int) error) (out runlog.Outcome) {
	processed := 0

	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("run_id", runID).WithField("panic", fmt.Sprint(r)).Error("Collection panicked")
			out = runlog.Outcome{
				Status:    runlog.StatusFailed,
				Processed: processed,
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
		c.runs.FinishRun(context.WithoutCancel(ctx), runID, out)
	}()

	if err := loop(&processed); err != nil {
		msg := err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			msg = "collection interrupted: " + msg
		}
		return runlog.Outcome{
			Status:    runlog.StatusFailed,
			Processed: processed,
			Error:     msg,
		}
	}

	return runlog.Outcome{
		Status:    runlog.StatusCompleted,
		Processed: processed,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
