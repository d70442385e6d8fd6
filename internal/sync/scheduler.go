package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler runs a Runner on an interval and whenever Trigger fires.
type Scheduler struct {
	Runner   Runner
	Interval time.Duration
	Trigger  <-chan struct{}
	Logger   *slog.Logger
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Runner == nil || s.Interval <= 0 {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Run immediately at startup.
	s.runOnce(ctx, logger, "initial reconcile failed")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, logger, "scheduled reconcile failed")
		case <-s.Trigger:
			s.runOnce(ctx, logger, "requested reconcile failed")
			ticker.Reset(s.Interval)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, logger *slog.Logger, msg string) {
	err := s.Runner.RunOnce(ctx)
	if err == nil || errors.Is(err, ErrReconcileAlreadyRunning) {
		return
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	logger.Error(msg, "err", err)
}
