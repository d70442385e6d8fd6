package instancestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/open-bas/open-bas/internal/connectors/registry"
	"github.com/open-bas/open-bas/internal/db/gen"
)

// PGStore persists connector instances and the catalog in Postgres.
type PGStore struct {
	q *gen.Queries
}

var (
	_ registry.InstanceStore = (*PGStore)(nil)
	_ registry.CatalogStore  = (*PGStore)(nil)
)

func New(db gen.DBTX) *PGStore {
	return &PGStore{q: gen.New(db)}
}

func (s *PGStore) ListInstances(ctx context.Context, factoryKey string) ([]registry.ConnectorInstance, error) {
	rows, err := s.q.ListConnectorInstancesByFactory(ctx, normalizeKey(factoryKey))
	if err != nil {
		return nil, fmt.Errorf("list %s instances: %w", factoryKey, err)
	}
	out := make([]registry.ConnectorInstance, 0, len(rows))
	for _, row := range rows {
		out = append(out, toInstance(gen.GetConnectorInstanceRow(row)))
	}
	return out, nil
}

// ListAllInstances returns every persisted instance ordered by factory.
func (s *PGStore) ListAllInstances(ctx context.Context) ([]registry.ConnectorInstance, error) {
	rows, err := s.q.ListConnectorInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	out := make([]registry.ConnectorInstance, 0, len(rows))
	for _, row := range rows {
		out = append(out, toInstance(gen.GetConnectorInstanceRow(row)))
	}
	return out, nil
}

func (s *PGStore) GetInstance(ctx context.Context, id string) (registry.ConnectorInstance, error) {
	pgID, ok := parseID(id)
	if !ok {
		return registry.ConnectorInstance{}, registry.ErrInstanceNotFound
	}
	row, err := s.q.GetConnectorInstance(ctx, pgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return registry.ConnectorInstance{}, registry.ErrInstanceNotFound
	}
	if err != nil {
		return registry.ConnectorInstance{}, fmt.Errorf("get instance %s: %w", id, err)
	}
	return toInstance(row), nil
}

func (s *PGStore) SetCurrentStatus(ctx context.Context, id string, status registry.CurrentStatus) error {
	pgID, ok := parseID(id)
	if !ok {
		return registry.ErrInstanceNotFound
	}
	n, err := s.q.SetConnectorInstanceCurrentStatus(ctx, gen.SetConnectorInstanceCurrentStatusParams{
		ID:            pgID,
		CurrentStatus: string(status),
	})
	if err != nil {
		return fmt.Errorf("set status of %s: %w", id, err)
	}
	if n == 0 {
		return registry.ErrInstanceNotFound
	}
	return nil
}

func (s *PGStore) UpsertInstance(ctx context.Context, instance registry.ConnectorInstance) (registry.ConnectorInstance, error) {
	id := strings.TrimSpace(instance.ID)
	if id == "" {
		id = uuid.NewString()
	}
	pgID, ok := parseID(id)
	if !ok {
		return registry.ConnectorInstance{}, fmt.Errorf("instance id %q is not a UUID", instance.ID)
	}
	catalogID, _ := parseID(instance.CatalogID)

	status := instance.CurrentStatus
	if status == "" {
		status = registry.StatusStopped
	}
	row, err := s.q.UpsertConnectorInstance(ctx, gen.UpsertConnectorInstanceParams{
		ID:              pgID,
		FactoryKey:      normalizeKey(instance.FactoryKey),
		CatalogID:       catalogID,
		CurrentStatus:   string(status),
		RequestedStatus: string(instance.RequestedStatus),
		Configuration:   registry.NormalizeJSON(instance.Configuration),
		Source:          instance.Source,
	})
	if err != nil {
		return registry.ConnectorInstance{}, fmt.Errorf("upsert instance %s: %w", id, err)
	}
	return toInstance(gen.GetConnectorInstanceRow(row)), nil
}

func (s *PGStore) CatalogExists(ctx context.Context, factoryKey string) (bool, error) {
	exists, err := s.q.CatalogConnectorExists(ctx, normalizeKey(factoryKey))
	if err != nil {
		return false, fmt.Errorf("catalog lookup %s: %w", factoryKey, err)
	}
	return exists, nil
}

func (s *PGStore) InsertCatalog(ctx context.Context, entry registry.CatalogConnector) (registry.CatalogConnector, error) {
	schema, err := json.Marshal(entry.ConfigSchema)
	if err != nil {
		return registry.CatalogConnector{}, fmt.Errorf("encode config schema: %w", err)
	}
	if entry.ConfigSchema == nil {
		schema = []byte("[]")
	}
	row, err := s.q.InsertCatalogConnector(ctx, gen.InsertCatalogConnectorParams{
		FactoryKey:   normalizeKey(entry.FactoryKey),
		Title:        entry.Title,
		Slug:         entry.Slug,
		Description:  entry.Description,
		Icon:         entry.Icon,
		ConfigSchema: schema,
	})
	if err != nil {
		return registry.CatalogConnector{}, fmt.Errorf("insert catalog %s: %w", entry.FactoryKey, err)
	}

	out := registry.CatalogConnector{
		ID:          formatID(row.ID),
		FactoryKey:  row.FactoryKey,
		Title:       row.Title,
		Slug:        row.Slug,
		Description: row.Description,
		Icon:        row.Icon,
	}
	if len(row.ConfigSchema) > 0 {
		if err := json.Unmarshal(row.ConfigSchema, &out.ConfigSchema); err != nil {
			return registry.CatalogConnector{}, fmt.Errorf("decode config schema of %s: %w", row.FactoryKey, err)
		}
	}
	return out, nil
}

func toInstance(row gen.GetConnectorInstanceRow) registry.ConnectorInstance {
	var updated time.Time
	if row.UpdatedAt.Valid {
		updated = row.UpdatedAt.Time
	}
	return registry.ConnectorInstance{
		ID:              formatID(row.ID),
		FactoryKey:      row.FactoryKey,
		CurrentStatus:   registry.ParseCurrentStatus(row.CurrentStatus),
		RequestedStatus: registry.ParseRequestedStatus(row.RequestedStatus),
		Configuration:   row.Configuration,
		CatalogID:       formatID(row.CatalogID),
		Source:          row.Source,
		UpdatedAt:       updated,
	}
}

func parseID(v string) (pgtype.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: id, Valid: true}, true
}

func formatID(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
