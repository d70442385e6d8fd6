package registry

import (
	"fmt"
	"log/slog"
	"strings"
)

// ConnectorRegistry is the central registry for all connector definitions.
type ConnectorRegistry struct {
	definitions map[string]ConnectorDefinition
	order       []string // Factory order; credential providers should come first.
}

// NewRegistry creates a new connector registry.
func NewRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{
		definitions: make(map[string]ConnectorDefinition),
		order:       make([]string, 0),
	}
}

// Register adds a connector definition to the registry.
func (r *ConnectorRegistry) Register(def ConnectorDefinition) error {
	if def == nil {
		return fmt.Errorf("connector definition is nil")
	}
	kind := strings.ToLower(strings.TrimSpace(def.Kind()))
	if kind == "" {
		return fmt.Errorf("connector kind cannot be empty")
	}
	if _, exists := r.definitions[kind]; exists {
		return fmt.Errorf("connector kind %q already registered", kind)
	}
	r.definitions[kind] = def
	r.order = append(r.order, kind)
	return nil
}

// Get retrieves a connector definition by kind.
func (r *ConnectorRegistry) Get(kind string) (ConnectorDefinition, bool) {
	def, ok := r.definitions[strings.ToLower(strings.TrimSpace(kind))]
	return def, ok
}

// All returns all registered connector definitions in order.
func (r *ConnectorRegistry) All() []ConnectorDefinition {
	defs := make([]ConnectorDefinition, 0, len(r.order))
	for _, kind := range r.order {
		defs = append(defs, r.definitions[kind])
	}
	return defs
}

// Factories builds one factory per registered definition. Built-in definitions get an
// autostart factory; the others read instances from the given store.
func (r *ConnectorRegistry) Factories(instances InstanceStore, catalog CatalogStore, tasks *TaskPool, logger *slog.Logger) ([]*Factory, error) {
	factories := make([]*Factory, 0, len(r.order))
	for _, def := range r.All() {
		var (
			f   *Factory
			err error
		)
		if b, ok := def.(Builtin); ok && b.Builtin() {
			f, err = NewAutostartFactory(def, catalog, tasks, logger)
		} else {
			f, err = NewFactory(def, FactoryOptions{Instances: instances, Catalog: catalog, Tasks: tasks, Logger: logger})
		}
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}
	return factories, nil
}
