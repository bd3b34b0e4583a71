// Package scheduler drives the ingest loop: one pipeline cycle per
// interval over a sliding lookback window, until the context ends.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-ingest/internal/observability"
	"github.com/couchcryptid/quake-ingest/internal/pipeline"
)

// Cycler runs one ingest cycle over a time window.
type Cycler interface {
	RunCycle(ctx context.Context, start, end time.Time) (pipeline.CycleStats, error)
}

// Scheduler runs a Cycler on a fixed interval. A fetch failure is
// ordinary and retried on the next tick; anything unexpected, including
// a panic escaping the cycle, earns one extra interval of quiet before
// polling resumes.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	lookback time.Duration
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
	ready    atomic.Bool
}

// New creates a Scheduler. Pass a nil clock to use the real clock.
func New(cycler Cycler, interval, lookback time.Duration, clock clockwork.Clock,
	metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		cycler:   cycler,
		interval: interval,
		lookback: lookback,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// CheckReadiness returns nil once at least one cycle has completed
// without an unexpected error.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no ingest cycle has completed yet")
	}
	return nil
}

// Run polls until the context is cancelled. It always returns nil; the
// only way out is cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "lookback", s.lookback)

	for {
		s.metrics.SchedulerPolling.Set(1)
		extraPause := s.runOnce(ctx)
		s.metrics.SchedulerPolling.Set(0)
		if !s.wait(ctx) {
			return nil
		}
		if extraPause && !s.wait(ctx) {
			return nil
		}
	}
}

// runOnce executes a single cycle and reports whether an extra interval
// pause is due before the next one.
func (s *Scheduler) runOnce(ctx context.Context) (extraPause bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ingest cycle panicked", "panic", r)
			extraPause = true
		}
	}()

	now := s.clock.Now().UTC()
	stats, err := s.cycler.RunCycle(ctx, now.Add(-s.lookback), now)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		if errors.Is(err, pipeline.ErrFetchFailed) {
			s.logger.Warn("fetch failed, retrying next interval", "error", err)
			return false
		}
		s.logger.Error("ingest cycle failed", "error", err)
		return true
	}

	s.ready.Store(true)
	s.logger.Debug("cycle finished", "fetched", stats.Fetched, "new", stats.New)
	return false
}

// wait blocks for one interval. Returns false when the context ended
// first.
func (s *Scheduler) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		s.logger.Info("scheduler stopping", "reason", ctx.Err())
		return false
	case <-s.clock.After(s.interval):
		return true
	}
}
