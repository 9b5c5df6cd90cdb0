package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/retention/executor"
	"mercator-hq/revkeep/pkg/retention/pruner"
	"mercator-hq/revkeep/pkg/retention/settings"
	"mercator-hq/revkeep/pkg/revision"
	"mercator-hq/revkeep/pkg/revision/storage"
)

// app holds the stores and services shared by the commands.
type app struct {
	cfg      *config.Config
	store    revision.Store
	backend  settings.Backend
	settings *settings.Manager
	pruner   *pruner.Pruner
}

// openApp opens the content store and the state backend described by cfg,
// seeds the state from the configuration file and builds the pruner. sink
// receives the events of every run; it may be nil.
func openApp(ctx context.Context, cfg *config.Config, sink executor.Sink) (*app, error) {
	store, err := openStore(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(&cfg.State)
	if err != nil {
		store.Close()
		return nil, err
	}

	mgr := settings.NewManager(backend, &settings.Defaults{
		Frequency:       cfg.Prune.Frequency,
		RevisionsPerRun: cfg.Prune.RevisionsPerRun,
		Ceilings:        cfg.Ceilings,
	})

	a := &app{
		cfg:      cfg,
		store:    store,
		backend:  backend,
		settings: mgr,
	}

	if _, err := a.seed(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.pruner = pruner.New(store, mgr, &pruner.Config{
		ChunkSize: cfg.Prune.ChunkSize,
		Schedule:  cfg.Prune.Schedule,
		Language:  cfg.Prune.Language,
		Sink:      sink,
	})

	return a, nil
}

// seed adds the policies of the configuration file that are not stored yet.
// Stored policies always win over the file.
func (a *app) seed(ctx context.Context, cfg *config.Config) ([]string, error) {
	seeded, err := a.settings.SeedPolicies(ctx, cfg.RetentionPolicies())
	if err != nil {
		return nil, fmt.Errorf("failed to seed policies from configuration: %w", err)
	}
	if len(seeded) > 0 {
		slog.Info("policies seeded from configuration", "content_types", seeded)
	}
	return seeded, nil
}

// Close releases the stores.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.backend.Close())
}

func openStore(ctx context.Context, cfg *config.StoreConfig) (revision.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		if err := ensureDir(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		s, err := storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := storage.NewPostgresStore(ctx, &storage.PostgresConfig{
			DSN:          cfg.Postgres.DSN,
			MaxConns:     cfg.Postgres.MaxConns,
			CreateSchema: cfg.Postgres.CreateSchema,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL store: %w", err)
		}
		return s, nil
	case "memory":
		return storage.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func openBackend(cfg *config.StateConfig) (settings.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		b, err := settings.NewSQLiteBackend(settings.SQLiteBackendConfig{
			DBPath:      cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite state backend: %w", err)
		}
		return b, nil
	case "memory":
		return settings.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.Backend)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %q: %w", dir, err)
	}
	return nil
}
