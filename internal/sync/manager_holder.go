package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// BuildFunc constructs a manager. It runs while the manager lock is held.
type BuildFunc func(ctx context.Context) (*Manager, error)

// ManagerHolder lazily builds the process-wide Manager under the distributed
// manager lock and serializes reconciliation passes through the same lock.
type ManagerHolder struct {
	locks  LockManager
	build  BuildFunc
	logger *slog.Logger

	mu      sync.RWMutex
	manager *Manager
}

func NewManagerHolder(locks LockManager, build BuildFunc, logger *slog.Logger) (*ManagerHolder, error) {
	if locks == nil {
		return nil, errors.New("lock manager is nil")
	}
	if build == nil {
		return nil, errors.New("manager build function is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ManagerHolder{locks: locks, build: build, logger: logger}, nil
}

func (h *ManagerHolder) cached() *Manager {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.manager
}

// Get returns the manager, building it and running a first reconciliation pass on
// first use. A failed build is not cached; the next call tries again. A manager
// whose first pass failed is cached and returned together with the error, and
// the next pass retries the integrations that failed.
func (h *ManagerHolder) Get(ctx context.Context) (*Manager, error) {
	if h == nil {
		return nil, ErrManagerNotConfigured
	}
	if m := h.cached(); m != nil {
		return m, nil
	}
	if InReconcile(ctx) {
		return nil, ErrReentrantReconcile
	}

	var out *Manager
	err := h.withLock(ctx, func(ctx context.Context) error {
		m, _, err := h.ensure(ctx)
		out = m
		return err
	})
	return out, err
}

// Reconcile runs one reconciliation pass under the manager lock, building the
// manager first when needed.
func (h *ManagerHolder) Reconcile(ctx context.Context) error {
	if h == nil {
		return ErrManagerNotConfigured
	}
	if InReconcile(ctx) {
		return ErrReentrantReconcile
	}
	return h.withLock(ctx, func(ctx context.Context) error {
		m, built, err := h.ensure(ctx)
		if err != nil || built {
			return err
		}
		return m.reconcile(ctx)
	})
}

// RunOnce implements Runner.
func (h *ManagerHolder) RunOnce(ctx context.Context) error {
	return h.Reconcile(ctx)
}

// Manager returns the cached manager without building it.
func (h *ManagerHolder) Manager() *Manager {
	if h == nil {
		return nil
	}
	return h.cached()
}

// Close shuts the cached manager down.
func (h *ManagerHolder) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	m := h.manager
	h.manager = nil
	h.mu.Unlock()
	return m.Shutdown(ctx)
}

// ensure must run under the manager lock. It reports whether the manager was
// built, in which case the first pass already ran. The manager is cached as soon
// as it is built so integrations started by a partially failed first pass keep
// running and their persisted status stays true.
func (h *ManagerHolder) ensure(ctx context.Context) (*Manager, bool, error) {
	if m := h.cached(); m != nil {
		return m, false, nil
	}

	m, err := h.build(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("build manager: %w", err)
	}
	if m == nil {
		return nil, false, ErrManagerNotConfigured
	}
	h.mu.Lock()
	h.manager = m
	h.mu.Unlock()

	if err := m.reconcile(ctx); err != nil {
		h.logger.Warn("first reconcile pass failed", "integrations", m.Len(), "started", len(m.StartedIntegrations()), "err", err)
		return m, true, fmt.Errorf("initial reconcile: %w", err)
	}
	h.logger.Info("integration manager ready", "integrations", m.Len())
	return m, true, nil
}
