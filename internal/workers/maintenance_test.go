package workers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

type countingJob struct {
	calls   atomic.Int32
	redraws atomic.Int32
	err     error
}

func (c *countingJob) RefreshCoordinates(context.Context) (int, error) {
	c.calls.Add(1)
	return 3, c.err
}

func (c *countingJob) Sweep(context.Context) (int, error) {
	c.calls.Add(1)
	return 0, c.err
}

func (c *countingJob) RefreshHeatmaps(context.Context) (int, error) {
	c.redraws.Add(1)
	return 1, nil
}

func TestMaintenance_RunsJobsEveryTick(t *testing.T) {
	t.Parallel()

	heat := &countingJob{}
	sweeper := &countingJob{err: errors.New("boom")}
	w := NewMaintenance(heat, sweeper, 10*time.Millisecond, 2, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for heat.calls.Load() < 3 || sweeper.calls.Load() < 3 || sweeper.redraws.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs not run: heat=%d sweep=%d redraw=%d", heat.calls.Load(), sweeper.calls.Load(), sweeper.redraws.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestMaintenance_NilJobs(t *testing.T) {
	t.Parallel()

	w := NewMaintenance(nil, nil, 0, 0, newTestLogger())
	if w.interval != time.Minute || w.poolSize != 1 {
		t.Fatalf("unexpected defaults: %s %d", w.interval, w.poolSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)
}
