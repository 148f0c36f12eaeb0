package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trends-go/pkg/logger"
	"trends-go/pkg/task"
)

type recordingTrigger struct {
	mu    sync.Mutex
	kinds []task.Kind
	err   error
}

func (r *recordingTrigger) Trigger(ctx context.Context, kind task.Kind, req task.Request) (task.Accepted, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	if r.err != nil {
		return task.Accepted{}, r.err
	}
	return task.Accepted{Status: task.StatusAccepted, RunID: "run"}, nil
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 6 * * *", false},
		{"5 * * * *", false},
		{"@hourly", false},
		{"@every 30m", false},
		{"* * * * * *", true},
		{"not a schedule", true},
	}
	for _, tt := range tests {
		_, err := ParseSchedule(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{Enabled: true, DailyInterest: "61 * * * *"}, &recordingTrigger{})
	if err == nil {
		t.Fatal("Expected error for invalid schedule")
	}
}

func TestScheduler_NextAndStop(t *testing.T) {
	logger.SetLogger(logger.Nop())
	s, err := New(Config{Enabled: true, DailyInterest: "0 6 * * *"}, &recordingTrigger{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, ok := s.Next(task.KindHourlyRising); ok {
		t.Error("Expected hourly rising to be unscheduled")
	}

	s.Start()
	next, ok := s.Next(task.KindDailyInterest)
	if !ok {
		t.Fatal("Expected daily interest to be scheduled")
	}
	if next.Hour() != 6 || next.Minute() != 0 || !next.After(time.Now()) {
		t.Errorf("Unexpected next run: %v", next)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestScheduler_Fire(t *testing.T) {
	logger.SetLogger(logger.Nop())
	trigger := &recordingTrigger{}
	s, err := New(Config{Enabled: true, HourlyRising: "@hourly"}, trigger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.fire(task.KindHourlyRising)
	trigger.err = errors.New("upstream unavailable")
	s.fire(task.KindDailyInterest)

	if len(trigger.kinds) != 2 || trigger.kinds[0] != task.KindHourlyRising || trigger.kinds[1] != task.KindDailyInterest {
		t.Errorf("Unexpected triggers: %v", trigger.kinds)
	}
}
