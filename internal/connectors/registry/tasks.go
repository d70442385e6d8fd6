package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/open-bas/open-bas/internal/metrics"
	"golang.org/x/sync/semaphore"
)

const defaultTaskPoolSize = 8

// TaskPool bounds how many periodic integration tasks run at the same time across
// the whole process. Integrations schedule through a TaskGroup bound to the pool.
// Tasks outlive the reconcile pass that scheduled them, so their contexts derive
// from the pool's root and carry none of the pass's values.
type TaskPool struct {
	root   context.Context
	sem    *semaphore.Weighted
	logger *slog.Logger
}

func NewTaskPool(size int, logger *slog.Logger) *TaskPool {
	if size <= 0 {
		size = defaultTaskPoolSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskPool{root: context.Background(), sem: semaphore.NewWeighted(int64(size)), logger: logger}
}

// NewGroup returns an empty task group owned by one integration.
func (p *TaskPool) NewGroup(owner string) *TaskGroup {
	return &TaskGroup{pool: p, owner: owner}
}

// TaskGroup tracks the periodic tasks of one integration so they can all be
// cancelled when it stops.
type TaskGroup struct {
	pool  *TaskPool
	owner string

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// Every runs fn immediately and then on every interval until the group is cancelled.
// Errors are logged; a failing run does not stop the schedule.
func (g *TaskGroup) Every(name string, interval time.Duration, fn func(context.Context) error) error {
	if g == nil || g.pool == nil {
		return errors.New("task group is not configured")
	}
	if interval <= 0 {
		return errors.New("task interval must be > 0")
	}
	if fn == nil {
		return errors.New("task function is nil")
	}

	taskCtx, cancel := context.WithCancel(g.pool.root)
	g.mu.Lock()
	g.cancels = append(g.cancels, cancel)
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			g.runOnce(taskCtx, name, fn)
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (g *TaskGroup) runOnce(ctx context.Context, name string, fn func(context.Context) error) {
	if err := g.pool.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer g.pool.sem.Release(1)

	status := "success"
	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		status = "failure"
		g.pool.logger.Warn("integration task failed", "owner", g.owner, "task", name, "err", err)
	}
	metrics.IntegrationTaskRunsTotal.WithLabelValues(g.owner, name, status).Inc()
}

// Len reports how many tasks are scheduled.
func (g *TaskGroup) Len() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cancels)
}

// CancelAll cancels every scheduled task and waits for in-flight runs to return.
func (g *TaskGroup) CancelAll() {
	if g == nil {
		return
	}
	g.mu.Lock()
	cancels := g.cancels
	g.cancels = nil
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	g.wg.Wait()
}
