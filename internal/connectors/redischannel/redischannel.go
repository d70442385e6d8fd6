package redischannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/open-bas/open-bas/internal/connectors/configstore"
	"github.com/open-bas/open-bas/internal/connectors/registry"
)

// CapabilityChannel is the capability the redis injector answers to.
const CapabilityChannel = "channel:redis"

var errClosed = errors.New("redis channel is closed")

// Publisher delivers stimuli to subscribers of one pub/sub channel.
type Publisher struct {
	channel string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	client *redis.Client
}

// NewPublisher connects to url and checks the connection with PING.
func NewPublisher(ctx context.Context, url, channel string, timeout time.Duration, logger *slog.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{channel: channel, timeout: timeout, logger: logger, client: client}, nil
}

// Inject publishes the stimulus as JSON. It fails when nobody is subscribed.
func (p *Publisher) Inject(ctx context.Context, s registry.Stimulus) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil {
		return errClosed
	}
	if s.SentAt.IsZero() {
		s.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode stimulus: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	receivers, err := client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	if receivers == 0 {
		return fmt.Errorf("publish to %s: no subscribers", p.channel)
	}
	p.logger.Debug("stimulus published", "channel", p.channel, "inject", s.Inject, "receivers", receivers)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}

// Definition is the redis channel injector. Legacy holds the configuration read
// from the process environment.
type Definition struct {
	Legacy *configstore.RedisChannelConfig
}

func (d *Definition) Kind() string {
	return configstore.KindRedisChannel
}

func (d *Definition) DisplayName() string {
	return "Redis channel"
}

func (d *Definition) Role() registry.IntegrationRole {
	return registry.RoleInjector
}

func (d *Definition) Catalog() registry.CatalogConnector {
	return registry.CatalogConnector{
		Description: "Publishes simulated stimuli to a Redis pub/sub channel.",
		Icon:        "redis",
	}
}

func (d *Definition) ConfigPrototype() any {
	return configstore.RedisChannelConfig{}
}

func (d *Definition) RunMigrations(ctx context.Context, store registry.InstanceStore) error {
	if d.Legacy == nil {
		return nil
	}
	cfg := d.Legacy.Normalized()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("legacy redis channel configuration: %w", err)
	}
	_, err := registry.MigrateLegacyInstance(ctx, store, d.Kind(), registry.MarshalJSON(cfg))
	return err
}

func (d *Definition) NewRuntime(registry.ConnectorInstance) (registry.Runtime, error) {
	return &runtime{}, nil
}

type runtime struct {
	publisher *Publisher
}

func (r *runtime) Refresh(_ context.Context, instance registry.ConnectorInstance) (any, error) {
	cfg, err := registry.DecodeConfig[configstore.RedisChannelConfig](instance.Configuration)
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
	c, ok := cfg.(configstore.RedisChannelConfig)
	if !ok {
		return fmt.Errorf("unexpected redis channel configuration %T", cfg)
	}
	timeout, err := c.Timeout()
	if err != nil {
		return err
	}
	publisher, err := NewPublisher(ctx, c.URL, c.Channel, timeout, env.Logger)
	if err != nil {
		return err
	}

	var injector registry.Injector = publisher
	if err := env.Components.Register(injector, CapabilityChannel, "injector"); err != nil {
		_ = publisher.Close()
		return err
	}
	r.publisher = publisher
	return nil
}

func (r *runtime) Stop(context.Context) {
	if r.publisher == nil {
		return
	}
	_ = r.publisher.Close()
	r.publisher = nil
}
