// Package settings persists retention policies, global settings and the
// last-run timestamp, and enforces the global ceilings on policies.
//
// Two backends are provided: MemoryBackend for tests and one-shot runs, and
// SQLiteBackend for deployments. Manager wraps either one.
//
//	backend, err := settings.NewSQLiteBackend(settings.SQLiteBackendConfig{DBPath: "state.db"})
//	mgr := settings.NewManager(backend, nil)
//	clamped, err := mgr.LowerGlobalCeiling(ctx, retention.FieldWhenToDelete, 30)
package settings
