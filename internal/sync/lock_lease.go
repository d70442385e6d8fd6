package sync

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/open-bas/open-bas/internal/db/gen"
)

// leaseQueries is the part of the generated queries the lease backend needs.
type leaseQueries interface {
	TryAcquireLockLease(ctx context.Context, arg gen.TryAcquireLockLeaseParams) (gen.LockLease, error)
	RenewLockLease(ctx context.Context, arg gen.RenewLockLeaseParams) (gen.LockLease, error)
	ReleaseLockLease(ctx context.Context, arg gen.ReleaseLockLeaseParams) error
}

// leaseLockManager stores expiring leases in the lock_leases table. A lease whose
// holder stops renewing it can be taken over once it expires.
type leaseLockManager struct {
	q                leaseQueries
	instanceID       string
	ttlSeconds       int64
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

func newLeaseLockManager(q leaseQueries, cfg LockManagerConfig) *leaseLockManager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	every := cfg.HeartbeatInterval
	if every <= 0 {
		every = max(ttl/3, time.Second)
	}
	timeout := cfg.HeartbeatTimeout
	if timeout <= 0 {
		timeout = every
	}
	return &leaseLockManager{
		q:                q,
		instanceID:       resolveInstanceID(cfg.InstanceID),
		ttlSeconds:       durationSecondsCeil(ttl),
		heartbeatEvery:   every,
		heartbeatTimeout: timeout,
	}
}

func (m *leaseLockManager) TryAcquire(ctx context.Context, scope LockScope) (Lock, bool, error) {
	scope, err := scope.normalized()
	if err != nil {
		return nil, false, err
	}
	return m.tryAcquire(ctx, scope, pgtype.UUID{Bytes: uuid.New(), Valid: true})
}

// Acquire keeps one token across attempts so a retry after a lost response does
// not compete with its own lease.
func (m *leaseLockManager) Acquire(ctx context.Context, scope LockScope) (Lock, error) {
	scope, err := scope.normalized()
	if err != nil {
		return nil, err
	}
	token := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	return acquireByPolling(ctx, func(ctx context.Context) (Lock, bool, error) {
		return m.tryAcquire(ctx, scope, token)
	})
}

func (m *leaseLockManager) tryAcquire(ctx context.Context, scope LockScope, token pgtype.UUID) (Lock, bool, error) {
	_, err := m.q.TryAcquireLockLease(ctx, gen.TryAcquireLockLeaseParams{
		ScopeKind:        scope.Kind,
		ScopeName:        scope.Name,
		HolderInstanceID: m.instanceID,
		HolderToken:      token,
		LeaseSeconds:     m.ttlSeconds,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &leaseLock{m: m, scope: scope, token: token}, true, nil
}

type leaseLock struct {
	m     *leaseLockManager
	scope LockScope
	token pgtype.UUID
}

func (l *leaseLock) Scope() LockScope { return l.scope }

func (l *leaseLock) StartHeartbeat(ctx context.Context, onLost func(error)) func() {
	if onLost == nil {
		onLost = func(error) {}
	}
	hbCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() { once.Do(cancel) }

	go func() {
		// Jitter the first renewal so concurrent holders do not renew in lockstep.
		first := time.NewTimer(rand.N(l.m.heartbeatEvery/3 + 1))
		defer first.Stop()
		select {
		case <-hbCtx.Done():
			return
		case <-first.C:
		}

		ticker := time.NewTicker(l.m.heartbeatEvery)
		defer ticker.Stop()
		for {
			if err := l.renew(hbCtx); err != nil {
				if hbCtx.Err() == nil {
					onLost(err)
				}
				return
			}
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return stop
}

// renew fails with pgx.ErrNoRows once another holder has taken the scope over.
func (l *leaseLock) renew(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.m.heartbeatTimeout)
	defer cancel()
	_, err := l.m.q.RenewLockLease(ctx, gen.RenewLockLeaseParams{
		LeaseSeconds: l.m.ttlSeconds,
		ScopeKind:    l.scope.Kind,
		ScopeName:    l.scope.Name,
		HolderToken:  l.token,
	})
	return err
}

func (l *leaseLock) Release(ctx context.Context) error {
	return l.m.q.ReleaseLockLease(ctx, gen.ReleaseLockLeaseParams{
		ScopeKind:   l.scope.Kind,
		ScopeName:   l.scope.Name,
		HolderToken: l.token,
	})
}
