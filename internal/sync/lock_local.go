package sync

import (
	"context"
	"sync"
)

type localLockManager struct {
	mu    sync.Mutex
	slots map[LockScope]chan struct{}
}

// NewLocalLockManager returns a lock manager that only excludes callers within
// this process. It suits single-replica deployments and tests.
func NewLocalLockManager() LockManager {
	return &localLockManager{slots: make(map[LockScope]chan struct{})}
}

func (m *localLockManager) slot(scope LockScope) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[scope]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[scope] = ch
	}
	return ch
}

func (m *localLockManager) TryAcquire(_ context.Context, scope LockScope) (Lock, bool, error) {
	scope, err := scope.normalized()
	if err != nil {
		return nil, false, err
	}
	ch := m.slot(scope)
	select {
	case ch <- struct{}{}:
		return &localLock{slot: ch, scope: scope}, true, nil
	default:
		return nil, false, nil
	}
}

func (m *localLockManager) Acquire(ctx context.Context, scope LockScope) (Lock, error) {
	scope, err := scope.normalized()
	if err != nil {
		return nil, err
	}
	ch := m.slot(scope)
	select {
	case ch <- struct{}{}:
		return &localLock{slot: ch, scope: scope}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type localLock struct {
	slot  chan struct{}
	scope LockScope

	releaseOnce sync.Once
}

func (l *localLock) Scope() LockScope { return l.scope }

func (l *localLock) StartHeartbeat(context.Context, func(error)) func() { return func() {} }

func (l *localLock) Release(context.Context) error {
	l.releaseOnce.Do(func() { <-l.slot })
	return nil
}
