package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/syncx"
	"github.com/zeromicro/go-zero/core/threading"
)

// DefaultInterval is the refresh cadence when none is configured.
const DefaultInterval = 5 * time.Minute

// Runner executes one pipeline pass.
type Runner interface {
	RunOnce(ctx context.Context) RunReport
}

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

func newRealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

// Scheduler runs a Runner immediately and then on every tick. At most one
// run is in flight; ticks that arrive during a run are dropped, not queued.
type Scheduler struct {
	runner    Runner
	interval  time.Duration
	newTicker TickerFactory
	onReport  func(RunReport)

	running *syncx.AtomicBool
	group   *threading.RoutineGroup
	runs    atomic.Int64
	skipped atomic.Int64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTicker replaces the wall-clock ticker.
func WithTicker(factory TickerFactory) SchedulerOption {
	return func(s *Scheduler) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// WithReportHook is called with every finished run's report.
func WithReportHook(fn func(RunReport)) SchedulerOption {
	return func(s *Scheduler) {
		s.onReport = fn
	}
}

// NewScheduler builds a scheduler. A non-positive interval means DefaultInterval.
func NewScheduler(runner Runner, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		runner:    runner,
		interval:  interval,
		newTicker: newRealTicker,
		running:   syncx.NewAtomicBool(),
		group:     threading.NewRoutineGroup(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Runs reports how many runs have finished.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Skipped reports how many ticks were dropped because a run was in flight.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

// Run blocks until ctx is done, then waits for the in-flight run to finish.
// Runs are detached from ctx's cancellation so a shutdown never interrupts a
// load halfway.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	logx.WithContext(ctx).Infow("pipeline: scheduler started", logx.Field("interval", s.interval.String()))
	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			logx.WithContext(ctx).Infow("pipeline: scheduler stopping, waiting for in-flight run",
				logx.Field("in_flight", s.running.True()))
			s.group.Wait()
			logx.WithContext(ctx).Infow("pipeline: scheduler stopped",
				logx.Field("runs", s.Runs()),
				logx.Field("skipped", s.Skipped()))
			return
		case <-ticker.C():
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		logx.WithContext(ctx).Infow("pipeline: skipped overlapping tick", logx.Field("skipped_total", n))
		return false
	}

	runCtx := context.WithoutCancel(ctx)
	s.group.RunSafe(func() {
		defer func() {
			s.running.Set(false)
			s.runs.Add(1)
		}()
		report := s.runner.RunOnce(runCtx)
		if s.onReport != nil {
			s.onReport(report)
		}
	})
	return true
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) RunReport

// RunOnce implements Runner.
func (f RunnerFunc) RunOnce(ctx context.Context) RunReport { return f(ctx) }
