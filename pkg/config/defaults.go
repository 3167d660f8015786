package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultTenantID = "default"

	// Storage defaults
	DefaultStorageBackend          = "sqlite"
	DefaultSQLitePath              = "data/rules.db"
	DefaultSQLiteDriver            = "sqlite3"
	DefaultSQLiteMaxOpenConns      = 10
	DefaultSQLiteBusyTimeout       = 5 * time.Second
	DefaultPostgresMaxOpenConns    = 20
	DefaultPostgresMaxIdleConns    = 5
	DefaultPostgresConnMaxLifetime = 30 * time.Minute

	// Rules source defaults
	DefaultWatchDebounce   = 250 * time.Millisecond
	DefaultSyncActor       = "rules-sync"
	DefaultGitBranch       = "main"
	DefaultGitLocalPath    = "data/rules-repo"
	DefaultGitPollInterval = time.Minute
	DefaultGitTimeout      = 30 * time.Second
	DefaultGitAuthType     = "none"

	// Audit defaults
	DefaultAuditBackend       = "sqlite"
	DefaultAuditSQLitePath    = "data/audit.db"
	DefaultAuditAsyncBuffer   = 1000
	DefaultAuditWriteTimeout  = 5 * time.Second
	DefaultAuditRetentionDays = 365
	DefaultAuditPruneSchedule = "0 3 * * *"
	DefaultAuditArchivePath   = "data/audit-archives/"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "rulesengine"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "rulesengine"
	DefaultTracingTimeout     = 10 * time.Second

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultHealthPath      = "/healthz"
	DefaultReadyPath       = "/readyz"
)

// Defaults returns a configuration with every field at its default,
// including boolean switches that default to true. Files are decoded on
// top of it, so omitted keys keep their default.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Storage.SQLite.WALMode = true
	cfg.Storage.Postgres.AutoMigrate = true
	cfg.Audit.Enabled = true
	cfg.Telemetry.Logging.RedactPII = true
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Tracing.Insecure = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. Booleans are left
// alone because false cannot be told apart from unset; Defaults sets them.
// It is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine.TenantID == "" {
		cfg.Engine.TenantID = DefaultTenantID
	}

	s := &cfg.Storage
	if s.Backend == "" {
		s.Backend = DefaultStorageBackend
	}
	if s.SQLite.Path == "" {
		s.SQLite.Path = DefaultSQLitePath
	}
	if s.SQLite.Driver == "" {
		s.SQLite.Driver = DefaultSQLiteDriver
	}
	if s.SQLite.MaxOpenConns == 0 {
		s.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if s.SQLite.BusyTimeout == 0 {
		s.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if s.Postgres.MaxOpenConns == 0 {
		s.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if s.Postgres.MaxIdleConns == 0 {
		s.Postgres.MaxIdleConns = DefaultPostgresMaxIdleConns
	}
	if s.Postgres.ConnMaxLifetime == 0 {
		s.Postgres.ConnMaxLifetime = DefaultPostgresConnMaxLifetime
	}

	r := &cfg.Rules
	if r.WatchDebounce == 0 {
		r.WatchDebounce = DefaultWatchDebounce
	}
	if r.SyncActor == "" {
		r.SyncActor = DefaultSyncActor
	}
	if r.Git.Branch == "" {
		r.Git.Branch = DefaultGitBranch
	}
	if r.Git.LocalPath == "" {
		r.Git.LocalPath = DefaultGitLocalPath
	}
	if r.Git.PollInterval == 0 {
		r.Git.PollInterval = DefaultGitPollInterval
	}
	if r.Git.Timeout == 0 {
		r.Git.Timeout = DefaultGitTimeout
	}
	if r.Git.Auth.Type == "" {
		r.Git.Auth.Type = DefaultGitAuthType
	}

	a := &cfg.Audit
	if a.Backend == "" {
		a.Backend = DefaultAuditBackend
	}
	if a.SQLite.Path == "" {
		a.SQLite.Path = DefaultAuditSQLitePath
	}
	if a.SQLite.Driver == "" {
		a.SQLite.Driver = DefaultSQLiteDriver
	}
	if a.Recorder.AsyncBuffer == 0 {
		a.Recorder.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if a.Recorder.WriteTimeout == 0 {
		a.Recorder.WriteTimeout = DefaultAuditWriteTimeout
	}
	if a.Retention.RetentionDays == 0 {
		a.Retention.RetentionDays = DefaultAuditRetentionDays
	}
	if a.Retention.PruneSchedule == "" {
		a.Retention.PruneSchedule = DefaultAuditPruneSchedule
	}
	if a.Retention.ArchivePath == "" {
		a.Retention.ArchivePath = DefaultAuditArchivePath
	}

	t := &cfg.Telemetry
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}

	srv := &cfg.Server
	if srv.ListenAddress == "" {
		srv.ListenAddress = DefaultListenAddress
	}
	if srv.ReadTimeout == 0 {
		srv.ReadTimeout = DefaultReadTimeout
	}
	if srv.WriteTimeout == 0 {
		srv.WriteTimeout = DefaultWriteTimeout
	}
	if srv.ShutdownTimeout == 0 {
		srv.ShutdownTimeout = DefaultShutdownTimeout
	}
	if srv.HealthPath == "" {
		srv.HealthPath = DefaultHealthPath
	}
	if srv.ReadyPath == "" {
		srv.ReadyPath = DefaultReadyPath
	}
}
