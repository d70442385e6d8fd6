package sync

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-bas/open-bas/internal/connectors/registry"
	"github.com/open-bas/open-bas/internal/db/gen"
)

// advisoryLockManager uses session-level Postgres advisory locks. The holding
// connection is pinned until Release; the lock dies with the session, so there
// is nothing to renew.
type advisoryLockManager struct {
	pool *pgxpool.Pool
}

func (m *advisoryLockManager) TryAcquire(ctx context.Context, scope LockScope) (Lock, bool, error) {
	scope, err := scope.normalized()
	if err != nil {
		return nil, false, err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	q := gen.New(conn)
	key := registry.ConnectorLockKey(scope.Kind, scope.Name)

	ok, err := q.TryAcquireAdvisoryLock(ctx, key)
	if err != nil || !ok {
		conn.Release()
		return nil, false, err
	}
	return &advisoryLock{conn: conn, q: q, key: key, scope: scope}, true, nil
}

// Acquire polls instead of blocking in pg_advisory_lock so no pool connection
// is held while waiting.
func (m *advisoryLockManager) Acquire(ctx context.Context, scope LockScope) (Lock, error) {
	if _, err := scope.normalized(); err != nil {
		return nil, err
	}
	return acquireByPolling(ctx, func(ctx context.Context) (Lock, bool, error) {
		return m.TryAcquire(ctx, scope)
	})
}

type advisoryLock struct {
	conn  *pgxpool.Conn
	q     *gen.Queries
	key   int64
	scope LockScope

	releaseOnce sync.Once
}

func (l *advisoryLock) Scope() LockScope { return l.scope }

func (l *advisoryLock) StartHeartbeat(context.Context, func(error)) func() { return func() {} }

func (l *advisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return errors.New("advisory lock has no session")
	}
	var err error
	l.releaseOnce.Do(func() {
		err = l.q.ReleaseAdvisoryLock(ctx, l.key)
		l.conn.Release()
	})
	return err
}
