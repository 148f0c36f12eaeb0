package trends

import (
	"context"
	"sync/atomic"
)

// limiter caps the number of upstream requests in flight across every
// session opened by a Client.
type limiter struct {
	slots chan struct{}

	current  atomic.Int64
	acquires atomic.Int64
	waits    atomic.Int64
}

func newLimiter(maxConcurrent int) *limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &limiter{slots: make(chan struct{}, maxConcurrent)}
}

// acquire blocks until a slot is free or ctx is done.
func (l *limiter) acquire(ctx context.Context) error {
	l.acquires.Add(1)

	select {
	case l.slots <- struct{}{}:
		l.current.Add(1)
		return nil
	default:
	}

	l.waits.Add(1)
	select {
	case l.slots <- struct{}{}:
		l.current.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limiter) release() {
	l.current.Add(-1)
	<-l.slots
}

func (l *limiter) inFlight() int {
	return int(l.current.Load())
}
