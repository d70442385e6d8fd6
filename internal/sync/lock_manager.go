package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-bas/open-bas/internal/db/gen"
)

const (
	LockModeLease    = "lease"
	LockModeAdvisory = "advisory"
	LockModeLocal    = "local"

	defaultLockTTL = 60 * time.Second

	acquireInitialDelay = 250 * time.Millisecond
	acquireMaxDelay     = 5 * time.Second
)

// LockScope names one exclusive section. Kind and Name are compared case-insensitively.
type LockScope struct {
	Kind string
	Name string
}

func (s LockScope) String() string { return s.Kind + "/" + s.Name }

func (s LockScope) normalized() (LockScope, error) {
	out := LockScope{
		Kind: strings.ToLower(strings.TrimSpace(s.Kind)),
		Name: strings.ToLower(strings.TrimSpace(s.Name)),
	}
	if out.Kind == "" {
		return LockScope{}, errors.New("scope kind is required")
	}
	if out.Name == "" {
		return LockScope{}, errors.New("scope name is required")
	}
	return out, nil
}

type LockManagerConfig struct {
	Mode       string
	InstanceID string
	TTL        time.Duration
	// HeartbeatInterval defaults to a third of TTL; HeartbeatTimeout to the interval.
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

type Lock interface {
	Scope() LockScope
	// StartHeartbeat keeps the lock alive until stop is called. onLost runs at most
	// once, when the lock can no longer be renewed.
	StartHeartbeat(ctx context.Context, onLost func(error)) (stop func())
	Release(ctx context.Context) error
}

type LockManager interface {
	// TryAcquire returns ok=false without error when the scope is held elsewhere.
	TryAcquire(ctx context.Context, scope LockScope) (Lock, bool, error)
	// Acquire waits for the scope until ctx is done.
	Acquire(ctx context.Context, scope LockScope) (Lock, error)
}

// NewLockManager builds the lock manager for the configured mode. Lease is the
// default. The local mode only serializes callers inside this process and does
// not need a pool.
func NewLockManager(pool *pgxpool.Pool, cfg LockManagerConfig) (LockManager, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", LockModeLease:
		if pool == nil {
			return nil, errors.New("lock pool is nil")
		}
		return newLeaseLockManager(gen.New(pool), cfg), nil
	case LockModeAdvisory:
		if pool == nil {
			return nil, errors.New("lock pool is nil")
		}
		return &advisoryLockManager{pool: pool}, nil
	case LockModeLocal:
		return NewLocalLockManager(), nil
	default:
		return nil, fmt.Errorf("unknown lock mode %q", mode)
	}
}

func resolveInstanceID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	if h := strings.TrimSpace(os.Getenv("HOSTNAME")); h != "" {
		return h
	}
	if h, err := os.Hostname(); err == nil && strings.TrimSpace(h) != "" {
		return strings.TrimSpace(h)
	}
	return "unknown"
}

// acquireByPolling retries try with a jittered exponential backoff until it
// succeeds, fails, or ctx is done.
func acquireByPolling(ctx context.Context, try func(context.Context) (Lock, bool, error)) (Lock, error) {
	delay := acquireInitialDelay
	for {
		lock, ok, err := try(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return lock, nil
		}

		sleep := delay + rand.N(delay/2+1)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, acquireMaxDelay)
	}
}

func durationSecondsCeil(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
