package registry

import (
	"context"
	"slices"
)

// MigrateLegacyInstance persists configuration taken from the process environment
// as an instance that requests to be started. It does nothing once an instance of
// the kind was migrated, so later edits made by an administrator are kept. It
// reports whether an instance was created.
func MigrateLegacyInstance(ctx context.Context, store InstanceStore, kind string, configuration []byte) (bool, error) {
	existing, err := store.ListInstances(ctx, kind)
	if err != nil {
		return false, err
	}
	if slices.ContainsFunc(existing, func(i ConnectorInstance) bool { return i.Source == SourceEnvMigration }) {
		return false, nil
	}
	_, err = store.UpsertInstance(ctx, ConnectorInstance{
		FactoryKey:      normalizeKey(kind),
		CurrentStatus:   StatusStopped,
		RequestedStatus: RequestStarting,
		Configuration:   NormalizeJSON(configuration),
		Source:          SourceEnvMigration,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
