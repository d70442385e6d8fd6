package registry

import "context"

// IntegrationRole groups connector types by what they do for a simulation.
type IntegrationRole string

const (
	RoleExecutor    IntegrationRole = "executor"
	RoleInjector    IntegrationRole = "injector"
	RoleCredentials IntegrationRole = "credentials"
)

// ConnectorDefinition defines the behavior and metadata for a connector type.
type ConnectorDefinition interface {
	// Identity
	Kind() string // factory key, e.g. "caldera", "vault"
	DisplayName() string
	Role() IntegrationRole

	// Catalog metadata; ConfigSchema is derived from ConfigPrototype when empty.
	Catalog() CatalogConnector
	ConfigPrototype() any

	NewRuntime(instance ConnectorInstance) (Runtime, error)
}

// Migrator is implemented by definitions that lift legacy configuration into
// persisted instances. RunMigrations must be idempotent.
type Migrator interface {
	RunMigrations(ctx context.Context, store InstanceStore) error
}

// Builtin is implemented by definitions that are always on and never managed by an
// administrator. They run from a synthetic autostart instance held in memory.
type Builtin interface {
	Builtin() bool
}

// SecretResolver is the capability credential providers expose to other integrations.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// Capability identifiers shared between connectors.
const (
	CapabilitySecrets = "secrets"
)

// SecretsCapability names the capability of one credential provider kind, e.g.
// "secrets:vault".
func SecretsCapability(kind string) string {
	return CapabilitySecrets + ":" + normalizeKey(kind)
}
