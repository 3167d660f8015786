package app

import (
	"context"
	"fmt"

	"mercator-hq/rulesengine/pkg/audit"
	auditstorage "mercator-hq/rulesengine/pkg/audit/storage"
	"mercator-hq/rulesengine/pkg/config"
	"mercator-hq/rulesengine/pkg/rules/repository"
	"mercator-hq/rulesengine/pkg/rules/store"
)

// OpenRepository opens the rule repository selected by cfg.Backend.
func OpenRepository(ctx context.Context, cfg *config.StorageConfig) (store.Repository, error) {
	switch cfg.Backend {
	case "memory":
		return repository.NewMemoryRepository(), nil
	case "sqlite":
		repo, err := repository.NewSQLiteRepository(&repository.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite repository: %w", err)
		}
		return repo, nil
	case "postgres":
		repo, err := repository.NewPostgresRepository(ctx, PostgresConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// PostgresConfig converts the postgres storage settings.
func PostgresConfig(cfg *config.StorageConfig) *repository.PostgresConfig {
	return &repository.PostgresConfig{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		AutoMigrate:     cfg.Postgres.AutoMigrate,
	}
}

// OpenAuditStorage opens the audit backend selected by cfg.Backend. It
// ignores cfg.Enabled so the audit commands can read an existing trail.
func OpenAuditStorage(cfg *config.AuditConfig) (audit.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return auditstorage.NewMemoryStorage(), nil
	case "sqlite":
		sqliteConfig := auditstorage.DefaultSQLiteConfig()
		sqliteConfig.Path = cfg.SQLite.Path
		sqliteConfig.Driver = cfg.SQLite.Driver
		s, err := auditstorage.NewSQLiteStorage(sqliteConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Backend)
	}
}
