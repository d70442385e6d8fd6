package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/open-bas/open-bas/internal/connectors/configstore"
)

const (
	defaultHTTPAddr          = ":8080"
	defaultReconcileInterval = time.Minute
	defaultManagerLockMode   = "lease"
	defaultManagerLockTTL    = 60 * time.Second
	defaultTaskPoolSize      = 8
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	// MetricsAddr is empty when the metrics listener is disabled.
	MetricsAddr string

	ReconcileInterval time.Duration

	ManagerLockMode              string
	ManagerLockTTL               time.Duration
	ManagerLockHeartbeatInterval time.Duration
	ManagerLockHeartbeatTimeout  time.Duration
	LockInstanceID               string

	TaskPoolSize int

	// Legacy connector settings. They are lifted into persisted instances the
	// first time the manager runs and ignored afterwards.
	Caldera      *configstore.CalderaConfig
	RedisChannel *configstore.RedisChannelConfig
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		HTTPAddr:          getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:       strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		ReconcileInterval: getenvDurationDefault("RECONCILE_INTERVAL", defaultReconcileInterval),
		ManagerLockMode:   strings.ToLower(strings.TrimSpace(getenvDefault("MANAGER_LOCK_MODE", defaultManagerLockMode))),
		ManagerLockTTL:    getenvDurationDefault("MANAGER_LOCK_TTL", defaultManagerLockTTL),
		LockInstanceID:    strings.TrimSpace(os.Getenv("LOCK_INSTANCE_ID")),
		TaskPoolSize:      getenvIntDefault("TASK_POOL_SIZE", defaultTaskPoolSize),
	}
	cfg.ManagerLockHeartbeatInterval = cfg.ManagerLockTTL / 3
	cfg.ManagerLockHeartbeatTimeout = cfg.ManagerLockHeartbeatInterval

	switch cfg.ManagerLockMode {
	case "lease", "advisory", "local":
	default:
		return cfg, fmt.Errorf("MANAGER_LOCK_MODE must be lease, advisory or local, got %q", cfg.ManagerLockMode)
	}

	if getenvBoolDefault("CALDERA_ENABLE", false) {
		cfg.Caldera = &configstore.CalderaConfig{
			URL:    os.Getenv("CALDERA_URL"),
			APIKey: os.Getenv("CALDERA_API_KEY"),
		}
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisChannel = &configstore.RedisChannelConfig{URL: v}
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	default:
		return def
	}
}
