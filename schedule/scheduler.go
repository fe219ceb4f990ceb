/*
scheduler.go - Periodic leaderboard recomputation

PURPOSE:
  Recomputes the configured month range on a fixed interval so the
  public board and incentives follow the source data without an
  operator in the loop.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on start
  - The anchor month is resolved on every tick (override or current month)
  - Failures are logged; the next tick tries again

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  s := schedule.NewScheduler(runner, anchor, logger)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - runner.go: The run each tick performs
  - api/handlers.go: TriggerRun endpoint (manual runs)
*/
package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/incentive-engine/model"
)

// Scheduler triggers configured-range runs on a ticker.
type Scheduler struct {
	Runner   *Runner
	Anchor   func() (model.Month, error)
	Interval time.Duration
	Enabled  bool

	logger  *slog.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewScheduler creates a scheduler. A nil anchor uses the current UTC month.
func NewScheduler(runner *Runner, anchor func() (model.Month, error), logger *slog.Logger) *Scheduler {
	if anchor == nil {
		anchor = func() (model.Month, error) { return model.CurrentMonth(), nil }
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		Runner:   runner,
		Anchor:   anchor,
		Interval: time.Hour,
		Enabled:  true,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.logger.Info("scheduler started", "interval", s.Interval)
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker, s.stop = nil, nil
	s.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow runs the configured range for the current anchor.
func (s *Scheduler) RunNow(ctx context.Context) (Summary, error) {
	anchor, err := s.Anchor()
	if err != nil {
		s.logger.Error("cannot resolve anchor month", "error", err)
		s.record(err)
		return Summary{}, err
	}

	s.logger.Info("scheduled run", "anchor", anchor.String())
	sum, err := s.Runner.runConfigured(ctx, TriggerScheduled, anchor)
	if err != nil {
		s.logger.Error("scheduled run failed", "anchor", anchor.String(), "failed_months", len(sum.Failed), "error", err)
	}
	s.record(err)
	return sum, err
}

func (s *Scheduler) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = time.Now()
	s.lastErr = err
}

// LastRun returns when the last run finished and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// NextRunTime returns when the next scheduled run will occur.
func (s *Scheduler) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun.IsZero() {
		return time.Now()
	}
	return s.lastRun.Add(s.Interval)
}
