/*
scheduler.go - Automatic financial year award scheduler

PURPOSE:
  Periodically checks whether the current financial year needs its annual
  leave award and runs it without HR involvement.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Acts only inside the award window (July 1-7)
  - Skips years that already have ledger rows
  - Runs as leave.SystemActor with method "automatic"; a concurrent
    manual run that wins the race surfaces as DuplicateYearError and is
    logged at info

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (award.auto_award)

USAGE:
  scheduler := NewAwardScheduler(h.Awards, h.Registry, clock, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: StartFinancialYear endpoint (manual run)
  - leave/award.go: AwardEngine
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// AwardScheduler triggers the automatic award in the first week of July.
type AwardScheduler struct {
	Awards        *leave.AwardEngine
	Registry      *leave.Registry
	Clock         generic.Clock
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker    *time.Ticker
	stop      chan bool
	wg        sync.WaitGroup
	mu        sync.Mutex
	lastCheck time.Time
}

// NewAwardScheduler creates a new scheduler.
func NewAwardScheduler(awards *leave.AwardEngine, registry *leave.Registry, clock generic.Clock, logger *zap.Logger) *AwardScheduler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AwardScheduler{
		Awards:        awards,
		Registry:      registry,
		Clock:         clock,
		Logger:        logger.Named("scheduler"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (s *AwardScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan bool)
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("started", zap.Duration("check_interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check.
func (s *AwardScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker = nil
	s.mu.Unlock()

	// RunNow takes mu, so wait without holding it.
	if ticker != nil {
		ticker.Stop()
		close(stop)
		s.wg.Wait()
		s.Logger.Info("stopped")
	}
}

func (s *AwardScheduler) run(ticker *time.Ticker, stop chan bool) {
	defer s.wg.Done()

	// Run immediately on start
	s.check()

	for {
		select {
		case <-ticker.C:
			s.check()
		case <-stop:
			return
		}
	}
}

func (s *AwardScheduler) check() {
	result, err := s.RunNow(context.Background())
	if err != nil {
		var partial *generic.PartialBatchFailure
		if errors.As(err, &partial) {
			s.Logger.Warn("automatic award finished with failures",
				zap.Int("succeeded", partial.Succeeded),
				zap.Int("failed", len(partial.Failures)))
			return
		}
		s.Logger.Error("automatic award failed", zap.Error(err))
		return
	}
	if result != nil {
		s.Logger.Info("automatic award completed",
			zap.String("year", result.FinancialYear),
			zap.Int("awarded", result.AwardedCount))
	}
}

// RunNow performs one check. It returns (nil, nil) when nothing was due:
// outside the award window, or the year already started.
func (s *AwardScheduler) RunNow(ctx context.Context) (*leave.AwardResult, error) {
	now := s.Clock.Now()
	s.mu.Lock()
	s.lastCheck = now
	s.mu.Unlock()

	today := generic.FromTime(now)
	if !generic.IsAwardWindow(today) {
		s.Logger.Debug("outside award window", zap.String("today", today.String()))
		return nil, nil
	}

	fy := generic.CurrentFinancialYear(today)
	started, err := s.Registry.IsYearStarted(ctx, fy.String())
	if err != nil {
		return nil, err
	}
	if started {
		s.Logger.Debug("financial year already started", zap.String("year", fy.String()))
		return nil, nil
	}

	result, err := s.Awards.Run(ctx, leave.AwardRun{
		Year:    fy.String(),
		ActorID: leave.SystemActor,
		Method:  leave.AwardAutomatic,
	})
	var dup *leave.DuplicateYearError
	if errors.As(err, &dup) {
		s.Logger.Info("financial year started concurrently", zap.String("year", fy.String()))
		return nil, nil
	}
	return result, err
}

// NextRunTime returns when the next check is due, or zero before the
// first check.
func (s *AwardScheduler) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCheck.IsZero() {
		return time.Time{}
	}
	return s.lastCheck.Add(s.CheckInterval)
}
