package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-bas/open-bas/internal/connectors/configstore"
	"github.com/open-bas/open-bas/internal/connectors/registry"
)

type Definition struct{}

func (d *Definition) Kind() string {
	return configstore.KindVault
}

func (d *Definition) DisplayName() string {
	return "HashiCorp Vault"
}

func (d *Definition) Role() registry.IntegrationRole {
	return registry.RoleCredentials
}

func (d *Definition) Catalog() registry.CatalogConnector {
	return registry.CatalogConnector{
		Description: "Resolves secret references for other integrations from a Vault KV engine.",
		Icon:        "vault",
	}
}

func (d *Definition) ConfigPrototype() any {
	return configstore.VaultConfig{}
}

func (d *Definition) NewRuntime(registry.ConnectorInstance) (registry.Runtime, error) {
	return &runtime{}, nil
}

type runtime struct {
	mu     sync.Mutex
	client *Client
}

func (r *runtime) Refresh(_ context.Context, instance registry.ConnectorInstance) (any, error) {
	cfg, err := registry.DecodeConfig[configstore.VaultConfig](instance.Configuration)
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
	c, ok := cfg.(configstore.VaultConfig)
	if !ok {
		return fmt.Errorf("unexpected vault configuration %T", cfg)
	}
	client, err := New(ctx, Options{
		Address:          c.Address,
		Namespace:        c.Namespace,
		AuthType:         c.AuthType,
		Token:            c.Token,
		AppRoleMountPath: c.AppRoleMountPath,
		AppRoleRoleID:    c.AppRoleRoleID,
		AppRoleSecretID:  c.AppRoleSecretID,
		KVMount:          c.KVMount,
		KVVersion:        c.KVVersion,
		TLSSkipVerify:    c.TLSSkipVerify,
		TLSCACertPEM:     c.TLSCACertPEM,
	})
	if err != nil {
		return err
	}

	var resolver registry.SecretResolver = client
	if err := env.Components.Register(resolver, registry.CapabilitySecrets, registry.SecretsCapability(configstore.KindVault)); err != nil {
		return err
	}

	if c.RenewInterval != "" {
		interval, err := configstore.ParseInterval(c.RenewInterval, 0)
		if err != nil {
			return err
		}
		if err := env.Tasks.Every("token-renew", interval, client.RenewToken); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.client = client
	r.mu.Unlock()
	env.Logger.Info("vault secret resolver ready", "address", c.Address, "kv_mount", c.KVMount, "kv_version", c.KVVersion)
	return nil
}

func (r *runtime) Stop(context.Context) {
	r.mu.Lock()
	r.client = nil
	r.mu.Unlock()
}
