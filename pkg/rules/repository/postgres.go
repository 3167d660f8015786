package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // registers "postgres"
)

// PostgresConfig configures the PostgreSQL repository.
type PostgresConfig struct {
	// DSN is a lib/pq connection string or URL.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 20
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime bounds how long a connection is reused.
	// Default: 30 minutes
	ConnMaxLifetime time.Duration

	// AutoMigrate applies pending migrations when the repository opens.
	// Default: true
	AutoMigrate bool
}

// DefaultPostgresConfig returns the default configuration for dsn.
func DefaultPostgresConfig(dsn string) *PostgresConfig {
	return &PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// PostgresRepository stores rules in PostgreSQL.
type PostgresRepository struct {
	sqlRepository
	logger *slog.Logger
}

// OpenPostgres opens a connection pool for config without touching the schema.
func OpenPostgres(ctx context.Context, config *PostgresConfig) (*sql.DB, error) {
	if config == nil || config.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, newStorageError("postgres", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, newStorageError("postgres", "ping", err)
	}
	return db, nil
}

// NewPostgresRepository connects to PostgreSQL and, when configured,
// migrates the schema to the latest version.
func NewPostgresRepository(ctx context.Context, config *PostgresConfig) (*PostgresRepository, error) {
	db, err := OpenPostgres(ctx, config)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "rules.repository.postgres")

	if config.AutoMigrate {
		// The migrator owns its own pool so closing it leaves db open.
		migrationDB, err := OpenPostgres(ctx, config)
		if err != nil {
			db.Close()
			return nil, err
		}
		migrator, err := NewMigrator(migrationDB, logger)
		if err != nil {
			migrationDB.Close()
			db.Close()
			return nil, err
		}
		upErr := migrator.Up()
		closeErr := migrator.Close()
		if upErr != nil {
			db.Close()
			return nil, upErr
		}
		if closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}

	logger.Info("PostgreSQL rule repository initialized", "auto_migrate", config.AutoMigrate)

	return &PostgresRepository{
		sqlRepository: sqlRepository{db: db, backend: "postgres", bind: bindDollar},
		logger:        logger,
	}, nil
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return newStorageError("postgres", "close", err)
	}
	r.logger.Info("PostgreSQL rule repository closed")
	return nil
}
