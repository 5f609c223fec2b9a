package poller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the delay between poll cycles.
const DefaultInterval = 10 * time.Second

// Cycler runs one poll cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// Scheduler runs a Cycler on a fixed interval. The first cycle starts
// immediately. A tick that arrives while a cycle is still running is
// skipped, and a panicking cycle is recovered and logged.
type Scheduler struct {
	cron     *cron.Cron
	cycler   Cycler
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. A non-positive interval means DefaultInterval.
func NewScheduler(c Cycler, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover sits inside SkipIfStillRunning so a panicking cycle
			// still releases the running slot.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		cycler:   c,
		interval: interval,
		logger:   logger,
	}
}

// Start begins scheduling cycles. Cycles run with ctx; cancel it before
// calling Stop so a running cycle winds down after its current signature.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Schedule(&everySchedule{interval: s.interval}, cron.FuncJob(func() {
		s.runCycle(ctx)
	}))
	s.cron.Start()
	s.logger.Info("poll scheduler started", "interval", s.interval)
}

// Stop stops scheduling new cycles. The returned context is done once the
// running cycle, if any, has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.cycler.RunCycle(ctx); err != nil {
		s.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
	}
}

// everySchedule fires once immediately, then every interval after the
// previous activation.
type everySchedule struct {
	interval time.Duration
	started  atomic.Bool
}

func (e *everySchedule) Next(t time.Time) time.Time {
	if e.started.CompareAndSwap(false, true) {
		return t
	}
	return t.Add(e.interval)
}

// cronLogger routes cron's internal logging to slog. Routine scheduling
// chatter goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
