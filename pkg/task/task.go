// Package task turns a trigger (HTTP call, schedule or CLI) into a collection
// run: it resolves terms, timeframe and geography, records the run and hands
// the work to the collector.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trends-go/pkg/collector"
	"trends-go/pkg/logger"
	"trends-go/pkg/runlog"
	"trends-go/pkg/terms"
	"trends-go/pkg/trends"
	"trends-go/pkg/worker"
)

// Kind names a collection task.
type Kind string

const (
	KindDailyInterest Kind = "daily_interest"
	KindHourlyRising  Kind = "hourly_rising"
)

// ParseKind accepts the kind name in snake or kebab case, with or without the
// "run-" route prefix.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "run-"), "-", "_")
	switch Kind(name) {
	case KindDailyInterest, KindHourlyRising:
		return Kind(name), nil
	}
	return "", fmt.Errorf("unknown task %q", s)
}

// Status values of an Accepted answer.
const (
	StatusAccepted = "accepted"
	StatusSuccess  = "success"
)

// MessageNoTerms is returned when there is nothing to collect.
const MessageNoTerms = "no active terms to process"

var (
	// ErrTermLookup wraps failures reading the active term list.
	ErrTermLookup = errors.New("task: active term lookup failed")
	// ErrRunStart wraps failures creating the run record.
	ErrRunStart = errors.New("task: run could not be recorded")
	// ErrDispatch wraps failures handing the run to the worker pool.
	ErrDispatch = errors.New("task: run could not be dispatched")
)

// Request carries the optional overrides of a trigger. Empty fields fall
// back to the task defaults.
type Request struct {
	Terms     []string `json:"terms,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
	Geo       string   `json:"geo,omitempty"`
}

// Accepted is the immediate answer to a trigger.
type Accepted struct {
	Status  string `json:"status"`
	RunID   string `json:"run_id,omitempty"`
	Message string `json:"message"`
}

// Config holds the task defaults.
type Config struct {
	DefaultGeo         string `mapstructure:"default_geo"`
	InterestWindowDays int    `mapstructure:"interest_window_days"`
	RisingTimeframe    string `mapstructure:"rising_timeframe"`
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DefaultGeo:         "BR",
		InterestWindowDays: 7,
		RisingTimeframe:    "now 1-H",
	}
}

// TermSource lists the active terms.
type TermSource interface {
	Active(ctx context.Context) ([]string, error)
}

// RunLog records runs.
type RunLog interface {
	StartRun(ctx context.Context, task, message string) (string, error)
	FinishRun(ctx context.Context, runID string, out runlog.Outcome)
}

// Collector performs the collection of a run and finalizes it.
type Collector interface {
	CollectInterest(ctx context.Context, src trends.Source, job collector.Job) runlog.Outcome
	CollectRising(ctx context.Context, src trends.Source, job collector.Job) runlog.Outcome
}

// Dispatcher runs tasks in the background.
type Dispatcher interface {
	Submit(task worker.Task) error
}

// Service orchestrates collection runs.
type Service struct {
	connector trends.Connector
	terms     TermSource
	runs      RunLog
	collector Collector
	pool      Dispatcher
	cfg       Config
	log       *logger.Logger
	now       func() time.Time
}

// NewService wires a Service. pool may be nil when only RunSync is used.
func NewService(connector trends.Connector, termSource TermSource, runs RunLog, coll Collector, pool Dispatcher, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.DefaultGeo == "" {
		cfg.DefaultGeo = def.DefaultGeo
	}
	if cfg.InterestWindowDays <= 0 {
		cfg.InterestWindowDays = def.InterestWindowDays
	}
	if cfg.RisingTimeframe == "" {
		cfg.RisingTimeframe = def.RisingTimeframe
	}

	return &Service{
		connector: connector,
		terms:     termSource,
		runs:      runs,
		collector: coll,
		pool:      pool,
		cfg:       cfg,
		log:       logger.GetLogger().WithField("component", "task_service"),
		now:       time.Now,
	}
}

// plan is a resolved run, ready to be started.
type plan struct {
	kind   Kind
	source trends.Source
	job    collector.Job
}

// Trigger starts a run in the background and returns as soon as the run is
// recorded. When there are no terms no run is created.
func (s *Service) Trigger(ctx context.Context, kind Kind, req Request) (Accepted, error) {
	if s.pool == nil {
		return Accepted{}, fmt.Errorf("%w: no worker pool configured", ErrDispatch)
	}

	p, ok, err := s.prepare(ctx, kind, req)
	if err != nil {
		return Accepted{}, err
	}
	if !ok {
		return noTerms(), nil
	}

	runID, err := s.start(ctx, p)
	if err != nil {
		return Accepted{}, err
	}
	p.job.RunID = runID

	err = s.pool.Submit(worker.Task{
		ID:   runID,
		Kind: string(kind),
		Fn: func(ctx context.Context) error {
			out := s.collect(ctx, p)
			if out.Status == runlog.StatusFailed {
				return errors.New(out.Error)
			}
			return nil
		},
	})
	if err != nil {
		s.runs.FinishRun(context.WithoutCancel(ctx), runID, runlog.Outcome{
			Status: runlog.StatusFailed,
			Error:  "dispatch failed: " + err.Error(),
		})
		return Accepted{}, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	s.log.WithFields(map[string]interface{}{
		"run_id":    runID,
		"task":      string(kind),
		"terms":     len(p.job.Terms),
		"timeframe": p.job.Timeframe,
		"geo":       p.job.Geo,
	}).Info("Run dispatched")

	return Accepted{
		Status:  StatusAccepted,
		RunID:   runID,
		Message: fmt.Sprintf("%s collection started for %d terms", kind, len(p.job.Terms)),
	}, nil
}

// RunSync performs the same flow as Trigger but waits for the collection to
// finish. It is used by the command line.
func (s *Service) RunSync(ctx context.Context, kind Kind, req Request) (Accepted, runlog.Outcome, error) {
	p, ok, err := s.prepare(ctx, kind, req)
	if err != nil {
		return Accepted{}, runlog.Outcome{}, err
	}
	if !ok {
		return noTerms(), runlog.Outcome{}, nil
	}

	runID, err := s.start(ctx, p)
	if err != nil {
		return Accepted{}, runlog.Outcome{}, err
	}
	p.job.RunID = runID

	out := s.collect(ctx, p)
	return Accepted{
		Status:  StatusAccepted,
		RunID:   runID,
		Message: fmt.Sprintf("%s collection finished for %d terms", kind, len(p.job.Terms)),
	}, out, nil
}

func noTerms() Accepted {
	return Accepted{Status: StatusSuccess, Message: MessageNoTerms}
}

// prepare resolves everything a run needs. ok is false when there are no
// terms to collect.
func (s *Service) prepare(ctx context.Context, kind Kind, req Request) (p plan, ok bool, err error) {
	if kind != KindDailyInterest && kind != KindHourlyRising {
		return plan{}, false, fmt.Errorf("unknown task %q", kind)
	}

	src, err := s.connector.Connect(ctx)
	if err != nil {
		if !errors.Is(err, trends.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", trends.ErrUpstreamUnavailable, err)
		}
		return plan{}, false, err
	}

	list, err := s.resolveTerms(ctx, req.Terms)
	if err != nil {
		return plan{}, false, err
	}
	if len(list) == 0 {
		s.log.WithField("task", string(kind)).Info("No active terms to process")
		return plan{}, false, nil
	}

	return plan{
		kind:   kind,
		source: src,
		job: collector.Job{
			Terms:     list,
			Timeframe: s.resolveTimeframe(kind, req.Timeframe),
			Geo:       s.resolveGeo(req.Geo),
		},
	}, true, nil
}

func (s *Service) resolveTerms(ctx context.Context, explicit []string) ([]string, error) {
	if list := terms.Clean(explicit); len(list) > 0 {
		return list, nil
	}

	active, err := s.terms.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTermLookup, err)
	}
	return active, nil
}

func (s *Service) resolveTimeframe(kind Kind, explicit string) string {
	if tf := strings.TrimSpace(explicit); tf != "" {
		return tf
	}
	if kind == KindHourlyRising {
		return s.cfg.RisingTimeframe
	}
	return InterestWindow(s.now(), s.cfg.InterestWindowDays)
}

func (s *Service) resolveGeo(explicit string) string {
	if geo := strings.TrimSpace(explicit); geo != "" {
		return strings.ToUpper(geo)
	}
	return s.cfg.DefaultGeo
}

// InterestWindow returns the "YYYY-MM-DD YYYY-MM-DD" timeframe covering the
// days before now, ending with now's date.
func InterestWindow(now time.Time, days int) string {
	end := now.Format(time.DateOnly)
	start := now.AddDate(0, 0, -days).Format(time.DateOnly)
	return start + " " + end
}

func (s *Service) start(ctx context.Context, p plan) (string, error) {
	message := fmt.Sprintf("%d terms, timeframe %q, geo %s", len(p.job.Terms), p.job.Timeframe, p.job.Geo)
	runID, err := s.runs.StartRun(ctx, string(p.kind), message)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRunStart, err)
	}
	return runID, nil
}

func (s *Service) collect(ctx context.Context, p plan) runlog.Outcome {
	if p.kind == KindHourlyRising {
		return s.collector.CollectRising(ctx, p.source, p.job)
	}
	return s.collector.CollectInterest(ctx, p.source, p.job)
}
