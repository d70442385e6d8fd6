package sync

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-bas/open-bas/internal/db/gen"
)

// ReconcileSignalRunner asks the worker to reconcile by sending a Postgres
// notification instead of reconciling in the calling process.
type ReconcileSignalRunner struct {
	pool  *pgxpool.Pool
	locks LockManager
}

func NewReconcileSignalRunner(pool *pgxpool.Pool, locks LockManager) Runner {
	return &ReconcileSignalRunner{pool: pool, locks: locks}
}

func (r *ReconcileSignalRunner) RunOnce(ctx context.Context) error {
	if r == nil || r.pool == nil || r.locks == nil {
		return errors.New("reconcile signal runner is not configured")
	}

	lock, ok, err := r.locks.TryAcquire(ctx, ManagerScope)
	if err != nil {
		return err
	}
	if !ok {
		return ErrReconcileAlreadyRunning
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		_ = lock.Release(unlockCtx)
	}()

	if err := notifyQueries(r.pool, lock).NotifyReconcileRequested(ctx); err != nil {
		return err
	}
	return ErrReconcileQueued
}

// notifyQueries reuses the advisory lock connection when there is one so the
// notification is sent while the lock is still held on the same session.
func notifyQueries(pool *pgxpool.Pool, lock Lock) *gen.Queries {
	if l, ok := lock.(*advisoryLock); ok && l.q != nil {
		return l.q
	}
	return gen.New(pool)
}

// ListenForReconcileRequests forwards reconcile notifications to out until ctx is
// done. Notifications arriving while out is full are coalesced.
func ListenForReconcileRequests(ctx context.Context, pool *pgxpool.Pool, out chan<- struct{}) error {
	if pool == nil {
		return errors.New("reconcile pool is nil")
	}
	if out == nil {
		return errors.New("reconcile signal channel is nil")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ReconcileNotifyChannel); err != nil {
		return err
	}

	for {
		_, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		select {
		case out <- struct{}{}:
		default:
		}
	}
}
