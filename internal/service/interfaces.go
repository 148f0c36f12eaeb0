package service

import (
	"context"
	"time"

	"trends-go/pkg/compare"
	"trends-go/pkg/runlog"
	"trends-go/pkg/task"
	"trends-go/pkg/worker"
)

type TaskService interface {
	Trigger(ctx context.Context, kind task.Kind, req task.Request) (task.Accepted, error)
}

type CompareService interface {
	Compare(ctx context.Context, req compare.Request) (compare.Result, error)
}

type RunService interface {
	GetRun(ctx context.Context, runID string) (*runlog.Run, error)
	ListRuns(ctx context.Context, q runlog.Query) ([]runlog.Run, error)
	Stuck(ctx context.Context, olderThan time.Duration) ([]runlog.Run, error)
}

type MonitorService interface {
	Metrics() worker.MetricsSnapshot
}
