package awssecrets

import (
	"context"
	"fmt"

	"github.com/open-bas/open-bas/internal/connectors/configstore"
	"github.com/open-bas/open-bas/internal/connectors/registry"
)

type Definition struct{}

func (d *Definition) Kind() string {
	return configstore.KindAWSSecrets
}

func (d *Definition) DisplayName() string {
	return "AWS Secrets Manager"
}

func (d *Definition) Role() registry.IntegrationRole {
	return registry.RoleCredentials
}

func (d *Definition) Catalog() registry.CatalogConnector {
	return registry.CatalogConnector{
		Description: "Resolves secret references for other integrations from AWS Secrets Manager.",
		Icon:        "aws",
	}
}

func (d *Definition) ConfigPrototype() any {
	return configstore.AWSSecretsConfig{}
}

func (d *Definition) NewRuntime(registry.ConnectorInstance) (registry.Runtime, error) {
	return &runtime{newClient: New}, nil
}

type runtime struct {
	newClient func(context.Context, Options) (*Client, error)
	client    *Client
}

func (r *runtime) Refresh(_ context.Context, instance registry.ConnectorInstance) (any, error) {
	cfg, err := registry.DecodeConfig[configstore.AWSSecretsConfig](instance.Configuration)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Start loads the AWS configuration, which may reach the instance metadata
// service when the default credential chain is used.
func (r *runtime) Start(ctx context.Context, cfg any, env registry.StartEnv) error {
	c, ok := cfg.(configstore.AWSSecretsConfig)
	if !ok {
		return fmt.Errorf("unexpected aws secrets configuration %T", cfg)
	}
	client, err := r.newClient(ctx, Options{
		Region:          c.Region,
		AuthType:        c.AuthType,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Endpoint:        c.Endpoint,
		Prefix:          c.Prefix,
	})
	if err != nil {
		return err
	}

	var resolver registry.SecretResolver = client
	if err := env.Components.Register(resolver, registry.CapabilitySecrets, registry.SecretsCapability(configstore.KindAWSSecrets)); err != nil {
		return err
	}
	r.client = client
	env.Logger.Info("aws secrets resolver ready", "region", c.Region, "auth_type", c.AuthType)
	return nil
}

func (r *runtime) Stop(context.Context) {
	if r.client != nil {
		r.client.Invalidate()
	}
	r.client = nil
}
