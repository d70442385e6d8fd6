package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-bas/open-bas/internal/connectors/registry"
	"github.com/open-bas/open-bas/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrComponentNotFound is returned by Request when no started integration offers
// the requested capability.
var ErrComponentNotFound = registry.ErrComponentNotFound

const shutdownParallelism = 8

// ManagerOptions configures NewManager.
type ManagerOptions struct {
	Logger   *slog.Logger
	Reporter registry.Reporter
	Now      func() time.Time
}

// Manager owns every integration spawned by its factories and reconciles them
// against the persisted instances.
type Manager struct {
	factories []*registry.Factory
	logger    *slog.Logger
	reporter  registry.Reporter
	now       func() time.Time

	passMu sync.Mutex

	mu      sync.RWMutex
	spawned map[string]*registry.Integration
	order   []string
}

// NewManager initialises every factory. Any failure aborts construction.
func NewManager(ctx context.Context, factories []*registry.Factory, opts ManagerOptions) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		logger:   logger,
		reporter: opts.Reporter,
		now:      now,
		spawned:  make(map[string]*registry.Integration),
	}

	seen := make(map[string]struct{}, len(factories))
	for _, f := range factories {
		if f == nil {
			return nil, errors.New("factory is nil")
		}
		if _, dup := seen[f.Key()]; dup {
			return nil, fmt.Errorf("factory %q registered twice", f.Key())
		}
		seen[f.Key()] = struct{}{}

		f.SetDirectory(m)
		if err := f.Initialise(ctx); err != nil {
			return nil, fmt.Errorf("initialise factory %s: %w", f.Key(), err)
		}
		m.factories = append(m.factories, f)
	}
	logger.Info("integration manager initialised", "factories", len(m.factories))
	return m, nil
}

// MonitorIntegrations runs one reconciliation pass: newly discovered instances
// are spawned, then every known integration is initialised. The first error
// aborts the rest of the pass.
func (m *Manager) MonitorIntegrations(ctx context.Context) error {
	if m == nil {
		return ErrManagerNotConfigured
	}
	if InReconcile(ctx) {
		return ErrReentrantReconcile
	}
	return m.reconcile(withReconcileMarker(ctx))
}

// reconcile runs a pass for a caller that already marked ctx.
func (m *Manager) reconcile(ctx context.Context) error {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	started := m.now()
	err := m.monitor(ctx)
	elapsed := m.now().Sub(started)

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ReconcileDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	metrics.ReconcilePassesTotal.WithLabelValues(status).Inc()
	if err == nil {
		metrics.ReconcileLastSuccessTimestamp.Set(float64(m.now().Unix()))
	}
	m.updateKnownGauge()

	m.report(registry.Event{Stage: "reconcile", Done: true, Err: err, Message: "reconcile complete", Total: int64(m.Len()), Current: int64(m.Len())})
	return err
}

func (m *Manager) monitor(ctx context.Context) error {
	total := int64(len(m.factories))
	for idx, f := range m.factories {
		if err := ctx.Err(); err != nil {
			return err
		}
		instances, err := f.FindRelatedInstances(ctx)
		if err != nil {
			return fmt.Errorf("discover %s: %w", f.Key(), err)
		}

		unknown := make([]registry.ConnectorInstance, 0, len(instances))
		m.mu.RLock()
		for _, inst := range instances {
			if _, ok := m.spawned[integrationKey(f.Key(), inst.ID)]; !ok {
				unknown = append(unknown, inst)
			}
		}
		m.mu.RUnlock()

		m.report(registry.Event{Source: f.Key(), Stage: "discover", Current: int64(idx + 1), Total: total})
		if len(unknown) == 0 {
			continue
		}

		spawned, err := f.Sync(ctx, unknown)
		m.add(spawned)
		if len(spawned) > 0 {
			m.logger.Info("integrations discovered", "factory", f.Key(), "count", len(spawned))
		}
		if err != nil {
			return fmt.Errorf("sync %s: %w", f.Key(), err)
		}
	}

	known := m.Integrations()
	for idx, integration := range known {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := integration.Initialise(ctx); err != nil {
			return fmt.Errorf("reconcile %s/%s: %w", integration.FactoryKey(), integration.ID(), err)
		}
		if integration.Gone() {
			m.remove(integration)
		}
		m.report(registry.Event{Stage: "initialise", Current: int64(idx + 1), Total: int64(len(known))})
	}
	return nil
}

func (m *Manager) add(integrations []*registry.Integration) {
	if len(integrations) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range integrations {
		key := integrationKey(i.FactoryKey(), i.ID())
		if _, ok := m.spawned[key]; !ok {
			m.order = append(m.order, key)
		}
		m.spawned[key] = i
	}
}

func (m *Manager) remove(i *registry.Integration) {
	key := integrationKey(i.FactoryKey(), i.ID())
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.spawned, key)
	for idx, k := range m.order {
		if k == key {
			m.order = append(m.order[:idx], m.order[idx+1:]...)
			break
		}
	}
}

func (m *Manager) updateKnownGauge() {
	counts := make(map[string]int, len(m.factories))
	for _, f := range m.factories {
		counts[f.Key()] = 0
	}
	for _, i := range m.Integrations() {
		counts[i.FactoryKey()]++
	}
	for key, n := range counts {
		metrics.IntegrationsKnown.WithLabelValues(key).Set(float64(n))
	}
}

func (m *Manager) report(e registry.Event) {
	if m.reporter == nil {
		return
	}
	if e.Source == "" {
		e.Source = "manager"
	}
	if e.At.IsZero() {
		e.At = m.now()
	}
	m.reporter.Report(e)
}

func integrationKey(factoryKey, id string) string {
	return factoryKey + "/" + id
}

// Factories returns the factories the manager was built with.
func (m *Manager) Factories() []*registry.Factory {
	if m == nil {
		return nil
	}
	return append([]*registry.Factory(nil), m.factories...)
}

// Integrations returns every spawned integration in discovery order.
func (m *Manager) Integrations() []*registry.Integration {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*registry.Integration, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.spawned[key])
	}
	return out
}

// StartedIntegrations implements registry.Directory.
func (m *Manager) StartedIntegrations() []*registry.Integration {
	all := m.Integrations()
	out := all[:0]
	for _, i := range all {
		if i.Status() == registry.StatusStarted {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Shutdown releases the resources of every started integration. Persisted
// statuses are left alone so the next process picks the integrations back up.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.passMu.Lock()
	defer m.passMu.Unlock()

	started := m.StartedIntegrations()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(shutdownParallelism)
	for _, i := range started {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			i.Shutdown(gctx)
			return nil
		})
	}
	err := g.Wait()
	m.logger.Info("integration manager shut down", "stopped", len(started))
	return err
}

// Request returns the first component of type T offered under request by a
// started integration.
func Request[T any](m *Manager, request registry.ComponentRequest) (T, error) {
	if m == nil {
		var zero T
		return zero, ErrManagerNotConfigured
	}
	return registry.RequestStarted[T](m.StartedIntegrations(), request)
}
