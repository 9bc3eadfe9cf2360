package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// PeriodicTask is a named recurring loop with an explicit cancellation
// handle (the context passed to Start) and a non-reentrant execution guard,
// so a manual Trigger during a long cycle is skipped instead of overlapping.
type PeriodicTask struct {
	name      string
	interval  time.Duration
	immediate bool
	fn        func(ctx context.Context) error
	running   atomic.Bool
}

// NewPeriodicTask creates a task that runs fn every interval. When immediate
// is true the first run happens at Start rather than after one interval.
func NewPeriodicTask(name string, interval time.Duration, immediate bool, fn func(ctx context.Context) error) *PeriodicTask {
	return &PeriodicTask{
		name:      name,
		interval:  interval,
		immediate: immediate,
		fn:        fn,
	}
}

// Start blocks until the context is canceled, running the task on its
// interval. Errors from individual runs are logged, never fatal.
func (t *PeriodicTask) Start(ctx context.Context) {
	if t.immediate {
		t.run(ctx)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("periodic task stopped", "task", t.name)
			return
		case <-ticker.C:
			t.run(ctx)
		}
	}
}

// Trigger runs the task once outside its schedule. Returns false when a run
// is already in flight.
func (t *PeriodicTask) Trigger(ctx context.Context) bool {
	return t.run(ctx)
}

func (t *PeriodicTask) run(ctx context.Context) bool {
	if !t.running.CompareAndSwap(false, true) {
		slog.Warn("periodic task overrun, skipping tick", "task", t.name)
		return false
	}
	defer t.running.Store(false)

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		slog.Error("periodic task failed", "task", t.name, "error", err)
	} else {
		slog.Debug("periodic task complete", "task", t.name, "duration", time.Since(start).Round(time.Millisecond))
	}
	return true
}
