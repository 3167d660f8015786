package config

import "time"

// Config is the root configuration structure for the rules engine.
type Config struct {
	// Engine contains evaluation settings.
	Engine EngineConfig `yaml:"engine"`

	// Storage selects and configures the rule repository.
	Storage StorageConfig `yaml:"storage"`

	// Rules configures where rule definitions are loaded from.
	Rules RulesConfig `yaml:"rules"`

	// Audit configures the audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server configures the operations HTTP listener.
	Server ServerConfig `yaml:"server"`
}

// EngineConfig contains rule evaluation settings.
type EngineConfig struct {
	// TenantID scopes every store and engine operation.
	// Default: "default"
	TenantID string `yaml:"tenant_id"`

	// EvaluationTimeout bounds a single evaluation. Zero disables it.
	// Default: 0
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`

	// MaxRules caps the number of rules evaluated per call. Zero disables it.
	// Default: 0
	MaxRules int `yaml:"max_rules"`
}

// StorageConfig selects the rule repository backend.
type StorageConfig struct {
	// Backend is "memory", "sqlite" or "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres configures the Postgres backend.
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite database settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/rules.db"
	Path string `yaml:"path"`

	// Driver is "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig contains Postgres settings.
type PostgresConfig struct {
	// DSN is a lib/pq connection string or URL.
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 20
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime bounds connection reuse.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// AutoMigrate applies pending migrations on startup.
	// Default: true
	AutoMigrate bool `yaml:"auto_migrate"`
}

// RulesConfig configures rule definition sources.
type RulesConfig struct {
	// Path is a rules file or directory synced into the store on startup.
	// Empty disables the file source.
	Path string `yaml:"path"`

	// Watch reloads Path when files change.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period before a reload.
	// Default: 250ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// SyncActor is recorded as the actor of synced changes.
	// Default: "rules-sync"
	SyncActor string `yaml:"sync_actor"`

	// Git configures a git repository as the rules source.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures a git-backed rules source.
type GitConfig struct {
	// Enabled turns on the git source. It takes precedence over Path.
	Enabled bool `yaml:"enabled"`

	// Repository is the clone URL.
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the rules directory inside the repository.
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rules-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history; 0 clones everything.
	Depth int `yaml:"depth"`

	// CleanOnStart removes the local clone before cloning.
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is how often the repository is pulled. Zero disables polling.
	// Default: 1m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth holds repository credentials.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig contains git credentials.
type GitAuthConfig struct {
	// Type is "none", "token" or "ssh".
	// Default: "none"
	Type string `yaml:"type"`

	// Token is a personal access token for HTTPS remotes.
	Token string `yaml:"token"`

	// SSHKeyPath is the private key for SSH remotes.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase unlocks an encrypted key.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Enabled turns audit recording on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite audit store.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// Recorder configures asynchronous recording.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures pruning of old records.
	Retention RetentionConfig `yaml:"retention"`
}

// AuditSQLiteConfig contains audit database settings.
type AuditSQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Driver is "sqlite3" or "sqlite".
	// Default: "sqlite3"
	Driver string `yaml:"driver"`
}

// RecorderConfig configures the asynchronous audit recorder.
type RecorderConfig struct {
	// AsyncBuffer is the queue size.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig configures audit pruning.
type RetentionConfig struct {
	// RetentionDays deletes records older than this many days. Zero keeps
	// records forever.
	// Default: 365
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression. Empty disables scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete writes pruned records to ArchivePath as JSON.
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/audit-archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords keeps at most this many records. Zero means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks emails, card numbers and keys in log attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the scrape path on the ops server.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "rulesengine"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem.
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled turns tracing on. When off a no-op tracer is used.
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampled fraction for the "ratio" sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "rulesengine"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the operations HTTP server.
type ServerConfig struct {
	// ListenAddress is the host:port to bind.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// HealthPath serves liveness.
	// Default: "/healthz"
	HealthPath string `yaml:"health_path"`

	// ReadyPath serves readiness.
	// Default: "/readyz"
	ReadyPath string `yaml:"ready_path"`
}
