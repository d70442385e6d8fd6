// Package builtin holds the injectors that ship with the platform. They have no
// configuration and run from a synthetic autostart instance.
package builtin

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/open-bas/open-bas/internal/connectors/configstore"
	"github.com/open-bas/open-bas/internal/connectors/registry"
)

// Capabilities answered by the built-in injectors.
const (
	CapabilityManual  = "manual"
	CapabilityChannel = "channel"
)

const defaultInboxSize = 256

// Inbox keeps the most recent stimuli delivered by a built-in injector so the
// platform can display them.
type Inbox struct {
	limit  int
	logger *slog.Logger

	mu    sync.Mutex
	items []registry.Stimulus
}

func newInbox(limit int, logger *slog.Logger) *Inbox {
	if limit <= 0 {
		limit = defaultInboxSize
	}
	return &Inbox{limit: limit, logger: logger}
}

func (b *Inbox) Inject(ctx context.Context, s registry.Stimulus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.items = append(b.items, s)
	if over := len(b.items) - b.limit; over > 0 {
		b.items = slices.Delete(b.items, 0, over)
	}
	b.mu.Unlock()
	b.logger.Debug("stimulus recorded", "inject", s.Inject, "target", s.Target)
	return nil
}

// Recent returns the recorded stimuli, oldest first.
func (b *Inbox) Recent() []registry.Stimulus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

type definition struct {
	kind        string
	displayName string
	description string
	capability  string
}

// Manual is the injector for stimuli an operator plays out by hand.
func Manual() registry.ConnectorDefinition {
	return &definition{
		kind:        configstore.KindManual,
		displayName: "Manual",
		description: "Stimuli delivered by hand by the exercise animation team.",
		capability:  CapabilityManual,
	}
}

// Channel is the injector for in-platform media pressure.
func Channel() registry.ConnectorDefinition {
	return &definition{
		kind:        configstore.KindChannel,
		displayName: "Media pressure",
		description: "Articles and posts published on in-platform channels.",
		capability:  CapabilityChannel,
	}
}

func (d *definition) Kind() string                   { return d.kind }
func (d *definition) DisplayName() string            { return d.displayName }
func (d *definition) Role() registry.IntegrationRole { return registry.RoleInjector }
func (d *definition) ConfigPrototype() any           { return nil }
func (d *definition) Builtin() bool                  { return true }

func (d *definition) Catalog() registry.CatalogConnector {
	return registry.CatalogConnector{Description: d.description, ConfigSchema: []registry.ConfigField{}}
}

func (d *definition) NewRuntime(registry.ConnectorInstance) (registry.Runtime, error) {
	return &runtime{capability: d.capability}, nil
}

type runtime struct {
	registry.StaticRuntime
	capability string
}

func (r *runtime) Start(_ context.Context, _ any, env registry.StartEnv) error {
	var injector registry.Injector = newInbox(defaultInboxSize, env.Logger)
	return env.Components.Register(injector, r.capability, "injector")
}
