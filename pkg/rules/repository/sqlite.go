package repository

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

// SQLite driver names accepted by SQLiteConfig.Driver.
const (
	// DriverCGO selects github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"

	// DriverPureGo selects modernc.org/sqlite.
	DriverPureGo = "sqlite"
)

// SQLiteConfig configures the SQLite repository.
type SQLiteConfig struct {
	// Path is the database file path. ":memory:" opens a private
	// in-memory database on a single connection.
	Path string

	// Driver is DriverCGO or DriverPureGo.
	// Default: DriverCGO
	Driver string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default configuration for path.
func DefaultSQLiteConfig(path string) *SQLiteConfig {
	return &SQLiteConfig{
		Path:         path,
		Driver:       DriverCGO,
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteRepository stores rules in SQLite.
type SQLiteRepository struct {
	sqlRepository
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteRepository opens the database and creates the schema if needed.
func NewSQLiteRepository(config *SQLiteConfig) (*SQLiteRepository, error) {
	if config == nil {
		return nil, fmt.Errorf("sqlite config cannot be nil")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	driver := config.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPureGo {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	logger := slog.Default().With("component", "rules.repository.sqlite")

	db, err := sql.Open(driver, config.Path)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}

	maxOpen := config.MaxOpenConns
	if config.Path == ":memory:" || maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	r := &SQLiteRepository{
		sqlRepository: sqlRepository{db: db, backend: "sqlite", bind: bindQuestion},
		config:        config,
		logger:        logger,
	}

	if err := r.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite rule repository initialized",
		"path", config.Path,
		"driver", driver,
		"wal_mode", config.WALMode,
	)

	return r, nil
}

func (r *SQLiteRepository) initialize() error {
	if r.config.WALMode {
		if _, err := r.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStorageError("sqlite", "enable_wal", err)
		}
	}

	if r.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", r.config.BusyTimeout.Milliseconds())
		if _, err := r.db.Exec(pragma); err != nil {
			return newStorageError("sqlite", "set_busy_timeout", err)
		}
	}

	if _, err := r.db.Exec(sqliteSchema); err != nil {
		return newStorageError("sqlite", "create_schema", err)
	}

	if _, err := r.db.Exec(sqliteInsertSchemaVersion, SQLiteSchemaVersion); err != nil {
		return newStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := r.db.QueryRow(sqliteGetSchemaVersion).Scan(&version); err != nil {
		return newStorageError("sqlite", "get_schema_version", err)
	}
	if version != SQLiteSchemaVersion {
		return newStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SQLiteSchemaVersion, version))
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return newStorageError("sqlite", "close", err)
	}
	r.logger.Info("SQLite rule repository closed")
	return nil
}
