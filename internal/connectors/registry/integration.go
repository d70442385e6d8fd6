package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-bas/open-bas/internal/metrics"
)

const statusWriteTimeout = 5 * time.Second

// Runtime is the per-connector part of an integration: it owns the resources that
// exist while the integration is started.
type Runtime interface {
	// Refresh re-reads the typed configuration from the instance.
	Refresh(ctx context.Context, instance ConnectorInstance) (any, error)
	// Start acquires resources, registers components and schedules periodic work.
	Start(ctx context.Context, cfg any, env StartEnv) error
	// Stop releases resources. It is best effort and must not block forever.
	Stop(ctx context.Context)
}

// StartEnv is handed to Runtime.Start.
type StartEnv struct {
	InstanceID string
	Components *Components
	Tasks      *TaskGroup
	Directory  Directory
	Logger     *slog.Logger
}

// Directory gives runtimes access to the integrations that are currently started.
type Directory interface {
	StartedIntegrations() []*Integration
}

// StaticRuntime is embedded by built-in runtimes that have no external configuration.
type StaticRuntime struct{}

func (StaticRuntime) Refresh(context.Context, ConnectorInstance) (any, error) { return nil, nil }
func (StaticRuntime) Stop(context.Context)                                    {}

type transition int

const (
	transitionNone transition = iota
	transitionStart
	transitionStop
	transitionRestart
)

func (t transition) String() string {
	switch t {
	case transitionStart:
		return "start"
	case transitionStop:
		return "stop"
	case transitionRestart:
		return "restart"
	default:
		return "none"
	}
}

// decideTransition maps actual and desired state to the action to take. Rules are
// evaluated in order and the first match wins.
func decideTransition(status CurrentStatus, requested RequestedStatus, hashChanged bool) transition {
	started := status == StatusStarted
	switch {
	case started && requested == RequestStopping:
		return transitionStop
	case started && hashChanged:
		return transitionRestart
	case !started && requested == RequestStarting:
		return transitionStart
	default:
		return transitionNone
	}
}

// Integration is one live or stopped connector, wrapping its persisted instance.
// Initialise is not safe for concurrent use; status accessors are.
type Integration struct {
	factoryKey string
	store      InstanceStore
	runtime    Runtime
	directory  Directory
	components *Components
	tasks      *TaskGroup
	logger     *slog.Logger

	mu          sync.RWMutex
	instance    ConnectorInstance
	status      CurrentStatus
	appliedHash string
	gone        bool
}

// IntegrationOptions configures NewIntegration.
type IntegrationOptions struct {
	Store     InstanceStore
	Runtime   Runtime
	Tasks     *TaskPool
	Directory Directory
	Logger    *slog.Logger
}

func NewIntegration(instance ConnectorInstance, opts IntegrationOptions) (*Integration, error) {
	if opts.Store == nil {
		return nil, errors.New("integration store is nil")
	}
	if opts.Runtime == nil {
		return nil, errors.New("integration runtime is nil")
	}
	if instance.ID == "" {
		return nil, errors.New("integration instance id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := opts.Tasks
	if pool == nil {
		pool = NewTaskPool(0, logger)
	}
	return &Integration{
		factoryKey: instance.FactoryKey,
		store:      opts.Store,
		runtime:    opts.Runtime,
		directory:  opts.Directory,
		components: NewComponents(),
		tasks:      pool.NewGroup(instance.FactoryKey),
		logger:     logger.With("factory", instance.FactoryKey, "instance_id", instance.ID),
		instance:   instance,
		status:     StatusStopped,
	}, nil
}

func (i *Integration) ID() string         { return i.instance.ID }
func (i *Integration) FactoryKey() string { return i.factoryKey }

func (i *Integration) Status() CurrentStatus {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

func (i *Integration) AppliedHash() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.appliedHash
}

// Gone reports whether the backing instance was found missing on the last Initialise.
func (i *Integration) Gone() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.gone
}

// Instance returns the last instance snapshot read from the store.
func (i *Integration) Instance() ConnectorInstance {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return cloneInstance(i.instance)
}

func (i *Integration) Components() *Components { return i.components }

// ScheduledTasks reports how many periodic tasks the integration currently owns.
func (i *Integration) ScheduledTasks() int { return i.tasks.Len() }

// Initialise reconciles the integration against its persisted instance. It is
// idempotent and meant to be called on every reconciliation pass.
func (i *Integration) Initialise(ctx context.Context) (err error) {
	instance, err := i.store.GetInstance(ctx, i.ID())
	if errors.Is(err, ErrInstanceNotFound) {
		if i.Status() == StatusStarted {
			i.stop(ctx)
		}
		i.mu.Lock()
		i.gone = true
		i.mu.Unlock()
		i.logger.Info("connector instance removed, integration stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh instance %s: %w", i.ID(), err)
	}

	i.mu.Lock()
	i.instance = instance
	i.gone = false
	status := i.status
	hashChanged := i.appliedHash != ConfigHash(instance.Configuration)
	i.mu.Unlock()

	defer func() {
		if persistErr := i.persistStatus(ctx); persistErr != nil {
			err = errors.Join(err, persistErr)
		}
	}()

	next := decideTransition(status, instance.RequestedStatus, hashChanged)
	switch next {
	case transitionStop:
		i.stop(ctx)
	case transitionRestart:
		i.logger.Info("configuration changed, restarting integration")
		i.stop(ctx)
		err = i.start(ctx, instance)
	case transitionStart:
		err = i.start(ctx, instance)
	default:
		return nil
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.IntegrationTransitionsTotal.WithLabelValues(i.factoryKey, next.String(), result).Inc()
	return err
}

func (i *Integration) start(ctx context.Context, instance ConnectorInstance) error {
	if i.Status() == StatusStarted {
		i.logger.Warn("integration already started, ignoring start")
		return nil
	}

	cfg, err := i.runtime.Refresh(ctx, instance)
	if err != nil {
		return fmt.Errorf("refresh %s/%s: %w", i.factoryKey, instance.ID, err)
	}

	env := StartEnv{
		InstanceID: instance.ID,
		Components: i.components,
		Tasks:      i.tasks,
		Directory:  i.directory,
		Logger:     i.logger,
	}
	if err := i.runtime.Start(ctx, cfg, env); err != nil {
		i.tasks.CancelAll()
		i.components.Reset()
		return fmt.Errorf("start %s/%s: %w", i.factoryKey, instance.ID, err)
	}

	i.mu.Lock()
	i.status = StatusStarted
	i.appliedHash = ConfigHash(instance.Configuration)
	i.mu.Unlock()

	metrics.IntegrationsStarted.WithLabelValues(i.factoryKey).Inc()
	i.logger.Info("integration started", "components", i.components.Identifiers())
	return nil
}

func (i *Integration) stop(ctx context.Context) {
	i.runtime.Stop(ctx)
	i.tasks.CancelAll()
	i.components.Reset()

	i.mu.Lock()
	wasStarted := i.status == StatusStarted
	i.status = StatusStopped
	i.mu.Unlock()

	if wasStarted {
		metrics.IntegrationsStarted.WithLabelValues(i.factoryKey).Dec()
	}
	i.logger.Info("integration stopped")
}

// Shutdown releases the resources of a started integration without touching the
// persisted record. It must not run concurrently with Initialise.
func (i *Integration) Shutdown(ctx context.Context) {
	if i.Status() == StatusStarted {
		i.stop(ctx)
	}
}

// persistStatus writes the in-memory status when it disagrees with the persisted one.
func (i *Integration) persistStatus(ctx context.Context) error {
	i.mu.RLock()
	status := i.status
	persisted := i.instance.CurrentStatus
	gone := i.gone
	id := i.instance.ID
	i.mu.RUnlock()

	if gone || status == persisted {
		return nil
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if err := i.store.SetCurrentStatus(writeCtx, id, status); err != nil {
		if errors.Is(err, ErrInstanceNotFound) {
			i.mu.Lock()
			i.gone = true
			i.mu.Unlock()
			return nil
		}
		return fmt.Errorf("persist status of %s: %w", id, err)
	}

	i.mu.Lock()
	i.instance.CurrentStatus = status
	i.mu.Unlock()
	return nil
}

// RequestComponent returns the components of type T the integration exposes under
// the request. The result is empty while the integration is stopped.
func RequestComponent[T any](i *Integration, request ComponentRequest) ([]T, error) {
	if i == nil || i.Status() != StatusStarted {
		return nil, nil
	}
	return LookupComponents[T](i.components, request)
}
