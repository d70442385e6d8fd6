package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// FactoryOptions are the collaborators a Factory spawns integrations with.
type FactoryOptions struct {
	Instances InstanceStore
	Catalog   CatalogStore
	Tasks     *TaskPool
	Logger    *slog.Logger
}

// Factory turns persisted instances of one connector type into integrations.
type Factory struct {
	def       ConnectorDefinition
	instances InstanceStore
	catalog   CatalogStore
	tasks     *TaskPool
	logger    *slog.Logger

	mu        sync.RWMutex
	directory Directory
}

func NewFactory(def ConnectorDefinition, opts FactoryOptions) (*Factory, error) {
	if def == nil {
		return nil, errors.New("connector definition is nil")
	}
	if strings.TrimSpace(def.Kind()) == "" {
		return nil, errors.New("connector kind cannot be empty")
	}
	if opts.Instances == nil {
		return nil, fmt.Errorf("%s: instance store is nil", def.Kind())
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%s: catalog store is nil", def.Kind())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tasks := opts.Tasks
	if tasks == nil {
		tasks = NewTaskPool(0, logger)
	}
	return &Factory{
		def:       def,
		instances: opts.Instances,
		catalog:   opts.Catalog,
		tasks:     tasks,
		logger:    logger,
	}, nil
}

// NewAutostartFactory builds a factory for a built-in connector. Its only instance is
// a synthetic in-memory record that requests to be started.
func NewAutostartFactory(def ConnectorDefinition, catalog CatalogStore, tasks *TaskPool, logger *slog.Logger) (*Factory, error) {
	if def == nil {
		return nil, errors.New("connector definition is nil")
	}
	store := NewMemoryStore()
	kind := normalizeKey(def.Kind())
	if _, err := store.UpsertInstance(context.Background(), ConnectorInstance{
		ID:              autostartInstanceID + kind,
		FactoryKey:      kind,
		CurrentStatus:   StatusStopped,
		RequestedStatus: RequestStarting,
		Source:          SourceAutostart,
	}); err != nil {
		return nil, err
	}
	return NewFactory(def, FactoryOptions{Instances: store, Catalog: catalog, Tasks: tasks, Logger: logger})
}

func (f *Factory) Key() string                     { return normalizeKey(f.def.Kind()) }
func (f *Factory) Definition() ConnectorDefinition { return f.def }

// SetDirectory wires the lookup used by spawned integrations to find components of
// other integrations.
func (f *Factory) SetDirectory(d Directory) {
	f.mu.Lock()
	f.directory = d
	f.mu.Unlock()
}

// Initialise registers the connector type in the catalog if needed and runs its
// migrations. It is idempotent.
func (f *Factory) Initialise(ctx context.Context) error {
	exists, err := f.catalog.CatalogExists(ctx, f.Key())
	if err != nil {
		return fmt.Errorf("%s catalog lookup: %w", f.Key(), err)
	}
	if !exists {
		if err := f.insertCatalogEntry(ctx); err != nil {
			return err
		}
	}

	if m, ok := f.def.(Migrator); ok {
		if err := m.RunMigrations(ctx, f.instances); err != nil {
			return fmt.Errorf("%s migrations: %w", f.Key(), err)
		}
	}
	return nil
}

func (f *Factory) insertCatalogEntry(ctx context.Context) error {
	entry := f.def.Catalog()
	entry.FactoryKey = f.Key()
	if strings.TrimSpace(entry.Title) == "" {
		entry.Title = f.def.DisplayName()
	}
	if strings.TrimSpace(entry.Slug) == "" {
		entry.Slug = strings.ReplaceAll(f.Key(), "_", "-")
	}
	if len(entry.ConfigSchema) == 0 {
		entry.ConfigSchema = ConfigSchema(f.def.ConfigPrototype())
	}
	if _, err := f.catalog.InsertCatalog(ctx, entry); err != nil {
		return fmt.Errorf("%s catalog insert: %w", f.Key(), err)
	}
	f.logger.Info("connector catalog entry created", "factory", f.Key(), "slug", entry.Slug)
	return nil
}

// FindRelatedInstances returns every instance owned by this factory.
func (f *Factory) FindRelatedInstances(ctx context.Context) ([]ConnectorInstance, error) {
	instances, err := f.instances.ListInstances(ctx, f.Key())
	if err != nil {
		return nil, fmt.Errorf("%s list instances: %w", f.Key(), err)
	}
	return instances, nil
}

// Sync spawns an integration per instance and initialises each once. Integrations
// spawned before a failure are returned together with the error.
func (f *Factory) Sync(ctx context.Context, instances []ConnectorInstance) ([]*Integration, error) {
	out := make([]*Integration, 0, len(instances))
	for _, instance := range instances {
		integration, err := f.Spawn(instance)
		if err != nil {
			return out, err
		}
		out = append(out, integration)
		if err := integration.Initialise(ctx); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Spawn builds the integration for one instance.
func (f *Factory) Spawn(instance ConnectorInstance) (*Integration, error) {
	runtime, err := f.def.NewRuntime(instance)
	if err != nil {
		return nil, fmt.Errorf("%s/%s runtime: %w", f.Key(), instance.ID, err)
	}
	f.mu.RLock()
	directory := f.directory
	f.mu.RUnlock()

	instance.FactoryKey = f.Key()
	return NewIntegration(instance, IntegrationOptions{
		Store:     f.instances,
		Runtime:   runtime,
		Tasks:     f.tasks,
		Directory: directory,
		Logger:    f.logger,
	})
}
