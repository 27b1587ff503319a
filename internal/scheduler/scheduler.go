package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amishk599/leadsync/internal/model"
)

// Runner executes one sync run. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context) (model.RunSummary, error)
}

// Scheduler owns the main loop: runs a sync, waits the interval, repeats.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

// NewScheduler creates a scheduler that syncs every interval. Each run is
// bounded by runTimeout when it is positive.
func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Run starts the sync loop. It runs one immediate sync, then waits interval
// after each run finishes. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"run_timeout", s.runTimeout.String(),
	)

	// Run one immediate sync.
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runOnce(ctx)
		}
	}
}

// runOnce runs a single sync and logs its outcome. Failures never stop the loop.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	summary, err := s.runner.Run(runCtx)
	switch {
	case err == nil:
		s.logger.Debug("scheduled sync finished", "new", summary.NewJobsAdded, "unapplied", summary.Unapplied)
	case errors.Is(err, model.ErrRunInProgress):
		s.logger.Warn("skipping scheduled sync, another run holds the lock")
	case ctx.Err() != nil:
		// shutting down
	default:
		s.logger.Error("scheduled sync failed",
			"error", err,
			"new", summary.NewJobsAdded,
		)
	}
}
