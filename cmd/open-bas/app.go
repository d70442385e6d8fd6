package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-bas/open-bas/internal/config"
	"github.com/open-bas/open-bas/internal/connectors/awssecrets"
	"github.com/open-bas/open-bas/internal/connectors/builtin"
	"github.com/open-bas/open-bas/internal/connectors/caldera"
	"github.com/open-bas/open-bas/internal/connectors/instancestore"
	"github.com/open-bas/open-bas/internal/connectors/redischannel"
	"github.com/open-bas/open-bas/internal/connectors/registry"
	"github.com/open-bas/open-bas/internal/connectors/vault"
	"github.com/open-bas/open-bas/internal/logging"
	"github.com/open-bas/open-bas/internal/sync"
)

const shutdownTimeout = 30 * time.Second

// buildConnectorRegistry registers every connector. Credential providers come
// first so they are started before the integrations resolving secrets through them.
func buildConnectorRegistry(cfg config.Config) (*registry.ConnectorRegistry, error) {
	reg := registry.NewRegistry()
	defs := []registry.ConnectorDefinition{
		&vault.Definition{},
		&awssecrets.Definition{},
		builtin.Manual(),
		builtin.Channel(),
		&caldera.Definition{Legacy: cfg.Caldera},
		&redischannel.Definition{Legacy: cfg.RedisChannel},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

type managerDeps struct {
	Registry  *registry.ConnectorRegistry
	Instances registry.InstanceStore
	Catalog   registry.CatalogStore
	Tasks     *registry.TaskPool
	Reporter  registry.Reporter
	Logger    *slog.Logger
}

// newManagerBuilder returns the build function of the manager holder. Each call
// creates fresh factories so a failed build leaves nothing behind.
func newManagerBuilder(deps managerDeps) sync.BuildFunc {
	return func(ctx context.Context) (*sync.Manager, error) {
		factories, err := deps.Registry.Factories(deps.Instances, deps.Catalog, deps.Tasks, deps.Logger)
		if err != nil {
			return nil, err
		}
		return sync.NewManager(ctx, factories, sync.ManagerOptions{
			Logger:   logging.Component(deps.Logger, "manager"),
			Reporter: deps.Reporter,
		})
	}
}

// app holds the process-wide resources shared by serve, worker and reconcile.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	locks  sync.LockManager
	holder *sync.ManagerHolder
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a, err := newApp(cfg, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func newApp(cfg config.Config, logger *slog.Logger, pool *pgxpool.Pool) (*app, error) {
	locks, err := sync.NewLockManager(pool, sync.LockManagerConfig{
		Mode:              cfg.ManagerLockMode,
		InstanceID:        cfg.LockInstanceID,
		TTL:               cfg.ManagerLockTTL,
		HeartbeatInterval: cfg.ManagerLockHeartbeatInterval,
		HeartbeatTimeout:  cfg.ManagerLockHeartbeatTimeout,
	})
	if err != nil {
		return nil, err
	}

	reg, err := buildConnectorRegistry(cfg)
	if err != nil {
		return nil, err
	}
	store := instancestore.New(pool)
	build := newManagerBuilder(managerDeps{
		Registry:  reg,
		Instances: store,
		Catalog:   store,
		Tasks:     registry.NewTaskPool(cfg.TaskPoolSize, logging.Component(logger, "tasks")),
		Reporter:  &sync.LogReporter{Logger: logging.Component(logger, "reconcile")},
		Logger:    logger,
	})
	holder, err := sync.NewManagerHolder(locks, build, logging.Component(logger, "manager-factory"))
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, pool: pool, locks: locks, holder: holder}, nil
}

// Close stops the started integrations and releases the pool. Persisted statuses
// are kept so the next process resumes the same integrations.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.holder.Close(ctx); err != nil {
		a.logger.Warn("integration shutdown incomplete", "err", err)
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
