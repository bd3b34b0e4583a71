package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-ingest/internal/observability"
	"github.com/couchcryptid/quake-ingest/internal/pipeline"
)

type window struct {
	start, end time.Time
}

type fakeCycler struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	panicOn int
	ran     chan window
}

func newFakeCycler(errs ...error) *fakeCycler {
	return &fakeCycler{errs: errs, ran: make(chan window, 16)}
}

func (c *fakeCycler) RunCycle(_ context.Context, start, end time.Time) (pipeline.CycleStats, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	var err error
	if n <= len(c.errs) {
		err = c.errs[n-1]
	}
	shouldPanic := c.panicOn != 0 && n == c.panicOn
	c.mu.Unlock()

	c.ran <- window{start, end}
	if shouldPanic {
		panic("cycle exploded")
	}
	return pipeline.CycleStats{}, err
}

func testScheduler(c Cycler, clock clockwork.Clock) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(c, 30*time.Second, 2*time.Hour, clock, observability.NewMetricsForTesting(), logger)
}

func recvWindow(t *testing.T, ch chan window) window {
	t.Helper()
	select {
	case w := <-ch:
		return w
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a cycle to run")
		return window{}
	}
}

func assertNoCycle(t *testing.T, ch chan window) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected cycle ran")
	default:
	}
}

func TestRun_PollsOnIntervalWithLookbackWindow(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	cycler := newFakeCycler()
	s := testScheduler(cycler, fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	w := recvWindow(t, cycler.ran)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), w.start)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), w.end)

	fc.BlockUntil(1)
	fc.Advance(30 * time.Second)

	w = recvWindow(t, cycler.ran)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC), w.end)

	cancel()
	<-done
}

func TestRun_FetchFailureRetriesNextInterval(t *testing.T) {
	fc := clockwork.NewFakeClock()
	cycler := newFakeCycler(pipeline.ErrFetchFailed)
	s := testScheduler(cycler, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	recvWindow(t, cycler.ran)

	// One interval is enough; a fetch failure gets no extra pause.
	fc.BlockUntil(1)
	fc.Advance(30 * time.Second)
	recvWindow(t, cycler.ran)
}

func TestRun_UnexpectedErrorPausesOneExtraInterval(t *testing.T) {
	fc := clockwork.NewFakeClock()
	cycler := newFakeCycler(errors.New("something unexpected"))
	s := testScheduler(cycler, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	recvWindow(t, cycler.ran)

	fc.BlockUntil(1)
	fc.Advance(30 * time.Second)

	// The scheduler is now in its extra pause, so no cycle may run yet.
	fc.BlockUntil(1)
	assertNoCycle(t, cycler.ran)

	fc.Advance(30 * time.Second)
	recvWindow(t, cycler.ran)
}

func TestRun_PanicPausesOneExtraInterval(t *testing.T) {
	fc := clockwork.NewFakeClock()
	cycler := newFakeCycler()
	cycler.panicOn = 1
	s := testScheduler(cycler, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	recvWindow(t, cycler.ran)

	fc.BlockUntil(1)
	fc.Advance(30 * time.Second)

	fc.BlockUntil(1)
	assertNoCycle(t, cycler.ran)

	fc.Advance(30 * time.Second)
	recvWindow(t, cycler.ran)
}

func TestCheckReadiness(t *testing.T) {
	fc := clockwork.NewFakeClock()
	cycler := newFakeCycler()
	s := testScheduler(cycler, fc)

	require.Error(t, s.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	recvWindow(t, cycler.ran)
	fc.BlockUntil(1)

	assert.NoError(t, s.CheckReadiness(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	cycler := newFakeCycler()
	s := testScheduler(cycler, fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	recvWindow(t, cycler.ran)
	fc.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

// gaugeReadingCycler samples the polling gauge from inside the cycle.
type gaugeReadingCycler struct {
	metrics *observability.Metrics
	seen    chan float64
}

func (c *gaugeReadingCycler) RunCycle(_ context.Context, _, _ time.Time) (pipeline.CycleStats, error) {
	c.seen <- testutil.ToFloat64(c.metrics.SchedulerPolling)
	return pipeline.CycleStats{}, nil
}

func TestRun_PollingGaugeTracksCycle(t *testing.T) {
	fc := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	cycler := &gaugeReadingCycler{metrics: metrics, seen: make(chan float64, 1)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cycler, 30*time.Second, 2*time.Hour, fc, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	select {
	case v := <-cycler.seen:
		assert.Equal(t, 1.0, v, "gauge reads 1 while a cycle is in progress")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a cycle to run")
	}

	// Once the scheduler is parked on the interval wait, the gauge is
	// back to idle.
	fc.BlockUntil(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SchedulerPolling), "gauge reads 0 between cycles")

	cancel()
	<-done
}
