package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type CoordinateRefresher interface {
	RefreshCoordinates(ctx context.Context) (int, error)
}

// ConsoleSessions closes idle sessions and redraws stale heatmaps.
type ConsoleSessions interface {
	Sweep(ctx context.Context) (int, error)
	RefreshHeatmaps(ctx context.Context) (int, error)
}

type job struct {
	name    string
	run     func(ctx context.Context) (int, error)
	timeout time.Duration
}

// Maintenance periodically rebuilds the heatmap coordinate cache, redraws the
// heatmaps of sessions whose pins changed and closes idle console sessions.
type Maintenance struct {
	heat     CoordinateRefresher
	sessions ConsoleSessions
	logger   *slog.Logger
	jobs     chan job
	poolSize int
	interval time.Duration
}

func NewMaintenance(heat CoordinateRefresher, sessions ConsoleSessions, interval time.Duration, poolSize int, logger *slog.Logger) *Maintenance {
	if poolSize <= 0 {
		poolSize = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Maintenance{
		heat:     heat,
		sessions: sessions,
		logger:   logger,
		jobs:     make(chan job, 8),
		poolSize: poolSize,
		interval: interval,
	}
}

// Run blocks until ctx is done.
func (w *Maintenance) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < w.poolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.worker(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.producer(ctx)
	}()
	wg.Wait()
}

func (w *Maintenance) producer(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.schedule(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.schedule(ctx)
		}
	}
}

// schedule queues one round of jobs; a round still queued from the last tick
// is not duplicated.
func (w *Maintenance) schedule(ctx context.Context) {
	var round []job
	if w.heat != nil {
		round = append(round, job{name: "heatmap_refresh", run: w.heat.RefreshCoordinates, timeout: w.interval})
	}
	if w.sessions != nil {
		round = append(round,
			job{name: "session_sweep", run: w.sessions.Sweep, timeout: w.interval},
			job{name: "heatmap_redraw", run: w.sessions.RefreshHeatmaps, timeout: w.interval},
		)
	}

	for _, j := range round {
		select {
		case w.jobs <- j:
		case <-ctx.Done():
			return
		default:
			w.logger.Warn("maintenance job skipped, queue full", slog.String("job", j.name))
		}
	}
}

func (w *Maintenance) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.jobs:
			w.processJob(ctx, j)
		}
	}
}

func (w *Maintenance) processJob(ctx context.Context, j job) {
	jobCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.run(jobCtx)
	if err != nil {
		w.logger.Error("maintenance job failed", slog.String("job", j.name), slog.Any("error", err))
		return
	}
	w.logger.Debug("maintenance job done",
		slog.String("job", j.name),
		slog.Int("count", n),
		slog.Duration("took", time.Since(start)),
	)
}
