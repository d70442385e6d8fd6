package sync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/open-bas/open-bas/internal/connectors/registry"
)

type countingLockManager struct {
	inner    LockManager
	acquires atomic.Int64
}

func (m *countingLockManager) TryAcquire(ctx context.Context, scope LockScope) (Lock, bool, error) {
	return m.inner.TryAcquire(ctx, scope)
}

func (m *countingLockManager) Acquire(ctx context.Context, scope LockScope) (Lock, error) {
	m.acquires.Add(1)
	if scope != ManagerScope {
		return nil, errors.New("unexpected lock scope " + scope.String())
	}
	return m.inner.Acquire(ctx, scope)
}

type lostLock struct {
	Lock
	err error
}

func (l lostLock) StartHeartbeat(_ context.Context, onLost func(error)) func() {
	onLost(l.err)
	return func() {}
}

type losingLockManager struct {
	LockManager
	err error
}

func (m losingLockManager) Acquire(ctx context.Context, scope LockScope) (Lock, error) {
	lock, err := m.LockManager.Acquire(ctx, scope)
	if err != nil {
		return nil, err
	}
	return lostLock{Lock: lock, err: m.err}, nil
}

func newHolderFixture(t *testing.T) (*ManagerHolder, *registry.MemoryStore, *testDefinition, *atomic.Int64, *countingLockManager) {
	t.Helper()
	store := registry.NewMemoryStore()
	def := newTestDefinition("caldera")
	builds := &atomic.Int64{}
	locks := &countingLockManager{inner: NewLocalLockManager()}
	holder, err := NewManagerHolder(locks, func(ctx context.Context) (*Manager, error) {
		builds.Add(1)
		return NewManager(ctx, []*registry.Factory{newTestFactory(t, store, def)}, ManagerOptions{})
	}, nil)
	if err != nil {
		t.Fatalf("NewManagerHolder() error = %v", err)
	}
	return holder, store, def, builds, locks
}

func TestManagerHolderGetBuildsOnceAndRunsFirstPass(t *testing.T) {
	t.Parallel()

	holder, store, _, builds, locks := newHolderFixture(t)
	addInstance(t, store, "caldera", registry.RequestStarting, `{}`)

	m, err := holder.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := len(m.StartedIntegrations()); got != 1 {
		t.Fatalf("StartedIntegrations() = %d, want 1 after the first pass", got)
	}

	again, err := holder.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again != m {
		t.Fatalf("Get() returned a different manager")
	}
	if builds.Load() != 1 {
		t.Fatalf("builds = %d, want 1", builds.Load())
	}
	if locks.acquires.Load() != 1 {
		t.Fatalf("lock acquisitions = %d, want 1 (cached path skips the lock)", locks.acquires.Load())
	}
}

func TestManagerHolderConcurrentGetBuildsOnce(t *testing.T) {
	t.Parallel()

	holder, _, _, builds, _ := newHolderFixture(t)

	var wg sync.WaitGroup
	managers := make([]*Manager, 8)
	for i := range managers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := holder.Get(context.Background())
			if err != nil {
				t.Errorf("Get() error = %v", err)
				return
			}
			managers[i] = m
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Fatalf("builds = %d, want 1", builds.Load())
	}
	for i, m := range managers {
		if m != managers[0] {
			t.Fatalf("manager %d differs from manager 0", i)
		}
	}
}

func TestManagerHolderFailedBuildIsNotCached(t *testing.T) {
	t.Parallel()

	store := registry.NewMemoryStore()
	def := newTestDefinition("caldera")
	boom := errors.New("catalog unavailable")
	def.initErr = boom
	var builds atomic.Int64
	holder, err := NewManagerHolder(NewLocalLockManager(), func(ctx context.Context) (*Manager, error) {
		builds.Add(1)
		return NewManager(ctx, []*registry.Factory{newTestFactory(t, store, def)}, ManagerOptions{})
	}, nil)
	if err != nil {
		t.Fatalf("NewManagerHolder() error = %v", err)
	}

	if _, err := holder.Get(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Get() error = %v, want %v", err, boom)
	}
	if holder.Manager() != nil {
		t.Fatalf("failed build must not be cached")
	}

	def.initErr = nil
	if _, err := holder.Get(context.Background()); err != nil {
		t.Fatalf("Get() retry error = %v", err)
	}
	if builds.Load() != 2 {
		t.Fatalf("builds = %d, want 2", builds.Load())
	}
}

func TestManagerHolderKeepsManagerWhenFirstPassFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := registry.NewMemoryStore()
	vault := newTestDefinition("vault")
	caldera := newTestDefinition("caldera")
	boom := errors.New("caldera unreachable")
	caldera.startErr = boom

	var builds atomic.Int64
	holder, err := NewManagerHolder(NewLocalLockManager(), func(ctx context.Context) (*Manager, error) {
		builds.Add(1)
		return NewManager(ctx, []*registry.Factory{
			newTestFactory(t, store, vault),
			newTestFactory(t, store, caldera),
		}, ManagerOptions{})
	}, nil)
	if err != nil {
		t.Fatalf("NewManagerHolder() error = %v", err)
	}
	vaultInst := addInstance(t, store, "vault", registry.RequestStarting, `{}`)
	calderaInst := addInstance(t, store, "caldera", registry.RequestStarting, `{}`)

	m, err := holder.Get(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Get() error = %v, want %v", err, boom)
	}
	if m == nil || holder.Manager() != m {
		t.Fatalf("manager must be cached after a failed first pass")
	}

	exec, err := Request[executorService](m, "vault")
	if err != nil {
		t.Fatalf("Request(vault) error = %v", err)
	}
	if got := exec.Execute("ping"); got != "vault:ping" {
		t.Fatalf("Execute() = %q", got)
	}

	assertPersisted := func(id string, want registry.CurrentStatus) {
		t.Helper()
		inst, err := store.GetInstance(ctx, id)
		if err != nil {
			t.Fatalf("GetInstance(%s) error = %v", id, err)
		}
		if inst.CurrentStatus != want {
			t.Fatalf("persisted status of %s = %q, want %q", inst.FactoryKey, inst.CurrentStatus, want)
		}
	}
	assertPersisted(vaultInst.ID, registry.StatusStarted)
	assertPersisted(calderaInst.ID, registry.StatusStopped)

	// The cached manager retries only the failing integration.
	if _, err := holder.Get(ctx); err != nil {
		t.Fatalf("cached Get() error = %v", err)
	}
	caldera.runtimes[calderaInst.ID].startErr = nil
	if err := holder.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if builds.Load() != 1 {
		t.Fatalf("builds = %d, want 1", builds.Load())
	}
	if rt := vault.runtimes[vaultInst.ID]; rt.starts != 1 || rt.stops != 0 {
		t.Fatalf("vault runtime starts/stops = %d/%d, want 1/0", rt.starts, rt.stops)
	}
	if got := caldera.runtimes[calderaInst.ID].starts; got != 2 {
		t.Fatalf("caldera runtime starts = %d, want 2", got)
	}
	assertPersisted(calderaInst.ID, registry.StatusStarted)
	if got := len(m.StartedIntegrations()); got != 2 {
		t.Fatalf("StartedIntegrations() = %d, want 2", got)
	}
}

func TestManagerHolderReconcile(t *testing.T) {
	t.Parallel()

	holder, store, def, builds, locks := newHolderFixture(t)

	// The first Reconcile builds the manager and runs exactly one pass.
	if err := holder.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if builds.Load() != 1 {
		t.Fatalf("builds = %d, want 1", builds.Load())
	}

	inst := addInstance(t, store, "caldera", registry.RequestStarting, `{}`)
	if err := holder.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if def.runtimes[inst.ID].starts != 1 {
		t.Fatalf("runtime starts = %d, want 1", def.runtimes[inst.ID].starts)
	}
	if locks.acquires.Load() != 2 {
		t.Fatalf("lock acquisitions = %d, want 2", locks.acquires.Load())
	}

	if err := holder.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if def.runtimes[inst.ID].stops != 1 {
		t.Fatalf("runtime stops = %d, want 1 after Close", def.runtimes[inst.ID].stops)
	}
	if holder.Manager() != nil {
		t.Fatalf("Close() should drop the cached manager")
	}
}

func TestManagerHolderReentrantCallsFail(t *testing.T) {
	t.Parallel()

	store := registry.NewMemoryStore()
	def := newTestDefinition("caldera")
	var holder *ManagerHolder
	var getErr, reconcileErr error
	def.onStart = func(ctx context.Context, _ registry.StartEnv) error {
		_, getErr = holder.Get(ctx)
		reconcileErr = holder.Reconcile(ctx)
		return nil
	}
	holder, err := NewManagerHolder(NewLocalLockManager(), func(ctx context.Context) (*Manager, error) {
		return NewManager(ctx, []*registry.Factory{newTestFactory(t, store, def)}, ManagerOptions{})
	}, nil)
	if err != nil {
		t.Fatalf("NewManagerHolder() error = %v", err)
	}
	addInstance(t, store, "caldera", registry.RequestStarting, `{}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := holder.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !errors.Is(getErr, ErrReentrantReconcile) {
		t.Fatalf("reentrant Get() error = %v, want ErrReentrantReconcile", getErr)
	}
	if !errors.Is(reconcileErr, ErrReentrantReconcile) {
		t.Fatalf("reentrant Reconcile() error = %v, want ErrReentrantReconcile", reconcileErr)
	}
}

func TestManagerHolderReconcileFromScheduledTask(t *testing.T) {
	t.Parallel()

	store := registry.NewMemoryStore()
	def := newTestDefinition("caldera")
	var holder *ManagerHolder
	taskErr := make(chan error, 1)
	def.onStart = func(_ context.Context, env registry.StartEnv) error {
		return env.Tasks.Every("resync", time.Hour, func(ctx context.Context) error {
			err := holder.Reconcile(ctx)
			select {
			case taskErr <- err:
			default:
			}
			return err
		})
	}
	holder, err := NewManagerHolder(NewLocalLockManager(), func(ctx context.Context) (*Manager, error) {
		return NewManager(ctx, []*registry.Factory{newTestFactory(t, store, def)}, ManagerOptions{})
	}, nil)
	if err != nil {
		t.Fatalf("NewManagerHolder() error = %v", err)
	}
	addInstance(t, store, "caldera", registry.RequestStarting, `{}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := holder.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer m.Shutdown(context.Background())

	select {
	case err := <-taskErr:
		if err != nil {
			t.Fatalf("Reconcile() from task error = %v, want nil", err)
		}
	case <-ctx.Done():
		t.Fatalf("scheduled task never reconciled")
	}
}

func TestManagerHolderReportsLostLock(t *testing.T) {
	t.Parallel()

	store := registry.NewMemoryStore()
	lostErr := errors.New("lease expired")
	holder, err := NewManagerHolder(losingLockManager{LockManager: NewLocalLockManager(), err: lostErr}, func(ctx context.Context) (*Manager, error) {
		return NewManager(ctx, []*registry.Factory{newTestFactory(t, store, newTestDefinition("caldera"))}, ManagerOptions{})
	}, nil)
	if err != nil {
		t.Fatalf("NewManagerHolder() error = %v", err)
	}

	err = holder.Reconcile(context.Background())
	if !errors.Is(err, errManagerLockLost) || !errors.Is(err, lostErr) {
		t.Fatalf("Reconcile() error = %v, want lock lost", err)
	}
}

func TestNewManagerHolderValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewManagerHolder(nil, func(context.Context) (*Manager, error) { return nil, nil }, nil); err == nil {
		t.Fatalf("expected error for nil lock manager")
	}
	if _, err := NewManagerHolder(NewLocalLockManager(), nil, nil); err == nil {
		t.Fatalf("expected error for nil build function")
	}
	var nilHolder *ManagerHolder
	if _, err := nilHolder.Get(context.Background()); !errors.Is(err, ErrManagerNotConfigured) {
		t.Fatalf("nil Get() error = %v", err)
	}
}
