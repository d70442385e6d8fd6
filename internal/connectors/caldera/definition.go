package caldera

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-bas/open-bas/internal/connectors/configstore"
	"github.com/open-bas/open-bas/internal/connectors/registry"
)

// Definition is the Caldera executor. Legacy holds the configuration read from the
// process environment; it is migrated into a persisted instance once.
type Definition struct {
	Legacy *configstore.CalderaConfig
}

func (d *Definition) Kind() string {
	return configstore.KindCaldera
}

func (d *Definition) DisplayName() string {
	return "Caldera"
}

func (d *Definition) Role() registry.IntegrationRole {
	return registry.RoleExecutor
}

func (d *Definition) Catalog() registry.CatalogConnector {
	return registry.CatalogConnector{
		Description: "Runs simulation payloads on agents managed by a MITRE Caldera server.",
		Icon:        "caldera",
	}
}

func (d *Definition) ConfigPrototype() any {
	return configstore.CalderaConfig{}
}

// RunMigrations persists the environment configuration as an instance, once.
func (d *Definition) RunMigrations(ctx context.Context, store registry.InstanceStore) error {
	if d.Legacy == nil {
		return nil
	}
	cfg := d.Legacy.Normalized()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("legacy caldera configuration: %w", err)
	}
	_, err := registry.MigrateLegacyInstance(ctx, store, d.Kind(), registry.MarshalJSON(cfg))
	return err
}

func (d *Definition) NewRuntime(registry.ConnectorInstance) (registry.Runtime, error) {
	return &runtime{newClient: NewClient}, nil
}

type runtime struct {
	newClient func(ClientOptions) (*Client, error)

	mu       sync.Mutex
	executor *executor
}

func (r *runtime) Refresh(_ context.Context, instance registry.ConnectorInstance) (any, error) {
	cfg, err := registry.DecodeConfig[configstore.CalderaConfig](instance.Configuration)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *runtime) Start(ctx context.Context, cfg any, env registry.StartEnv) error {
	c, ok := cfg.(configstore.CalderaConfig)
	if !ok {
		return fmt.Errorf("unexpected caldera configuration %T", cfg)
	}

	apiKey := c.APIKey
	if c.APIKeyRef != "" {
		resolved, err := registry.ResolveSecret(ctx, env.Directory, c.APIKeyRef)
		if err != nil {
			return fmt.Errorf("caldera api key: %w", err)
		}
		apiKey = resolved
	}

	client, err := r.newClient(ClientOptions{
		URL:           c.URL,
		APIKey:        apiKey,
		TLSSkipVerify: c.TLSSkipVerify,
		Logger:        env.Logger,
	})
	if err != nil {
		return err
	}
	if err := client.Health(ctx); err != nil {
		return err
	}

	exec := &executor{client: client, group: c.Group, logger: env.Logger}
	var service registry.ExecutorService = exec
	if err := env.Components.Register(service, configstore.KindCaldera, "executor"); err != nil {
		return err
	}
	if err := env.Components.Register(client, configstore.KindCaldera); err != nil {
		return err
	}

	interval, err := c.Interval()
	if err != nil {
		return err
	}
	if err := env.Tasks.Every("poll-agents", interval, exec.poll); err != nil {
		return err
	}

	r.mu.Lock()
	r.executor = exec
	r.mu.Unlock()
	return nil
}

func (r *runtime) Stop(context.Context) {
	r.mu.Lock()
	r.executor = nil
	r.mu.Unlock()
}
