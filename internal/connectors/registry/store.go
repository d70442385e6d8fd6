package registry

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInstanceNotFound = errors.New("connector instance not found")

// InstanceStore persists connector instances. Every call is transactional at the
// single-record level.
type InstanceStore interface {
	ListInstances(ctx context.Context, factoryKey string) ([]ConnectorInstance, error)
	// GetInstance returns ErrInstanceNotFound when the record no longer exists.
	GetInstance(ctx context.Context, id string) (ConnectorInstance, error)
	SetCurrentStatus(ctx context.Context, id string, status CurrentStatus) error
	UpsertInstance(ctx context.Context, instance ConnectorInstance) (ConnectorInstance, error)
}

// CatalogStore persists the connector catalog.
type CatalogStore interface {
	CatalogExists(ctx context.Context, factoryKey string) (bool, error)
	InsertCatalog(ctx context.Context, entry CatalogConnector) (CatalogConnector, error)
}

// MemoryStore keeps instances and catalog entries in memory. Built-in connectors use
// it for their synthetic autostart instance.
type MemoryStore struct {
	mu        sync.Mutex
	instances map[string]ConnectorInstance
	order     []string
	catalog   map[string]CatalogConnector
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instances: make(map[string]ConnectorInstance),
		catalog:   make(map[string]CatalogConnector),
		now:       time.Now,
	}
}

func (s *MemoryStore) ListInstances(_ context.Context, factoryKey string) ([]ConnectorInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeKey(factoryKey)
	var out []ConnectorInstance
	for _, id := range s.order {
		inst, ok := s.instances[id]
		if !ok || normalizeKey(inst.FactoryKey) != key {
			continue
		}
		out = append(out, cloneInstance(inst))
	}
	return out, nil
}

func (s *MemoryStore) GetInstance(_ context.Context, id string) (ConnectorInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return ConnectorInstance{}, ErrInstanceNotFound
	}
	return cloneInstance(inst), nil
}

func (s *MemoryStore) SetCurrentStatus(_ context.Context, id string, status CurrentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return ErrInstanceNotFound
	}
	inst.CurrentStatus = status
	inst.UpdatedAt = s.now()
	s.instances[id] = inst
	return nil
}

func (s *MemoryStore) UpsertInstance(_ context.Context, instance ConnectorInstance) (ConnectorInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(instance.ID) == "" {
		instance.ID = uuid.NewString()
	}
	if instance.CurrentStatus == "" {
		instance.CurrentStatus = StatusStopped
	}
	instance.UpdatedAt = s.now()
	if _, ok := s.instances[instance.ID]; !ok {
		s.order = append(s.order, instance.ID)
	}
	s.instances[instance.ID] = cloneInstance(instance)
	return cloneInstance(instance), nil
}

// UpdateConfiguration replaces the configuration of an existing instance.
func (s *MemoryStore) UpdateConfiguration(id string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return ErrInstanceNotFound
	}
	inst.Configuration = slices.Clone(raw)
	inst.UpdatedAt = s.now()
	s.instances[id] = inst
	return nil
}

// RequestStatus sets the desired status of an existing instance.
func (s *MemoryStore) RequestStatus(id string, requested RequestedStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return ErrInstanceNotFound
	}
	inst.RequestedStatus = requested
	inst.UpdatedAt = s.now()
	s.instances[id] = inst
	return nil
}

func (s *MemoryStore) DeleteInstance(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
}

func (s *MemoryStore) CatalogExists(_ context.Context, factoryKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.catalog[normalizeKey(factoryKey)]
	return ok, nil
}

func (s *MemoryStore) InsertCatalog(_ context.Context, entry CatalogConnector) (CatalogConnector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeKey(entry.FactoryKey)
	if existing, ok := s.catalog[key]; ok {
		return existing, nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.catalog[key] = entry
	return entry, nil
}

func (s *MemoryStore) CatalogEntries() []CatalogConnector {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CatalogConnector, 0, len(s.catalog))
	for _, e := range s.catalog {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b CatalogConnector) int { return strings.Compare(a.FactoryKey, b.FactoryKey) })
	return out
}

func cloneInstance(in ConnectorInstance) ConnectorInstance {
	in.Configuration = slices.Clone(in.Configuration)
	return in
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
