// Package scheduler triggers the collection tasks from cron expressions
// inside the server process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"trends-go/pkg/logger"
	"trends-go/pkg/task"
)

// cronParser supports standard 5-field cron expressions and descriptors like @hourly.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Config holds one cron expression per task. An empty expression disables
// that task's schedule.
type Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	DailyInterest string `mapstructure:"daily_interest"`
	HourlyRising  string `mapstructure:"hourly_rising"`
}

// Trigger starts a task run.
type Trigger interface {
	Trigger(ctx context.Context, kind task.Kind, req task.Request) (task.Accepted, error)
}

// Scheduler fires task triggers on their schedules.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger
	entries map[task.Kind]cron.EntryID
	timeout time.Duration
	log     *logger.Logger
}

// New parses the schedules in cfg and registers them. Nothing runs until
// Start is called.
func New(cfg Config, trigger Trigger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(cronParser)),
		trigger: trigger,
		entries: make(map[task.Kind]cron.EntryID),
		timeout: time.Minute,
		log:     logger.GetLogger().WithField("component", "scheduler"),
	}

	specs := []struct {
		kind task.Kind
		expr string
	}{
		{task.KindDailyInterest, cfg.DailyInterest},
		{task.KindHourlyRising, cfg.HourlyRising},
	}
	for _, spec := range specs {
		if spec.expr == "" {
			continue
		}
		schedule, err := ParseSchedule(spec.expr)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule for %s %q: %w", spec.kind, spec.expr, err)
		}
		kind := spec.kind
		s.entries[kind] = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(kind) }))
	}
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for kind := range s.entries {
		if next, ok := s.Next(kind); ok {
			s.log.WithField("task", string(kind)).WithField("next_run", next.Format(time.RFC3339)).Info("Task scheduled")
		}
	}
}

// Stop stops firing and waits for an in-flight trigger or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next fire time of kind, if it is scheduled and started.
func (s *Scheduler) Next(kind task.Kind) (time.Time, bool) {
	id, ok := s.entries[kind]
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

func (s *Scheduler) fire(kind task.Kind) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.log.WithField("task", string(kind))
	acc, err := s.trigger.Trigger(ctx, kind, task.Request{})
	if err != nil {
		log.WithError(err).Error("Scheduled trigger failed")
		return
	}
	log.WithFields(map[string]interface{}{
		"status": acc.Status,
		"run_id": acc.RunID,
	}).Info("Scheduled trigger accepted")
}
