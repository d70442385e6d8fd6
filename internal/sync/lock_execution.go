package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-bas/open-bas/internal/metrics"
)

const lockReleaseTimeout = 5 * time.Second

// withLock runs fn holding the manager lock. fn's context is cancelled as soon as
// the heartbeat reports the lock lost, and that loss is joined to fn's error.
func (h *ManagerHolder) withLock(ctx context.Context, fn func(context.Context) error) error {
	waitStart := time.Now()
	lock, err := h.locks.Acquire(ctx, ManagerScope)
	metrics.ManagerLockWaitSeconds.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		return fmt.Errorf("acquire manager lock: %w", err)
	}
	defer h.release(ctx, lock)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := lock.StartHeartbeat(runCtx, func(err error) {
		h.logger.Error("manager lock lost", "scope", lock.Scope().String(), "err", err)
		cancel(fmt.Errorf("%w: %w", errManagerLockLost, err))
	})
	defer stop()

	runErr := fn(withReconcileMarker(runCtx))
	if cause := context.Cause(runCtx); errors.Is(cause, errManagerLockLost) {
		return errors.Join(runErr, cause)
	}
	return runErr
}

func (h *ManagerHolder) release(ctx context.Context, lock Lock) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := lock.Release(ctx); err != nil {
		h.logger.Warn("manager lock release failed", "scope", lock.Scope().String(), "err", err)
	}
}
