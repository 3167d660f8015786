package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "storage.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateServer(&cfg.Server)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(cfg.TenantID) == "" {
		errs = append(errs, FieldError{Field: "engine.tenant_id", Message: "tenant id is required"})
	}
	if cfg.EvaluationTimeout < 0 {
		errs = append(errs, FieldError{Field: "engine.evaluation_timeout", Message: "must not be negative"})
	}
	if cfg.MaxRules < 0 {
		errs = append(errs, FieldError{Field: "engine.max_rules", Message: "must not be negative"})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		errs = append(errs, validateSQLite("storage.sqlite", cfg.SQLite.Path, cfg.SQLite.Driver)...)
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "storage.sqlite.max_open_conns", Message: "must be at least 1"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "storage.postgres.dsn", Message: "dsn is required for the postgres backend"})
		}
		if cfg.Postgres.MaxIdleConns > cfg.Postgres.MaxOpenConns {
			errs = append(errs, FieldError{Field: "storage.postgres.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite', or 'postgres'", cfg.Backend),
		})
	}
	return errs
}

func validateSQLite(prefix, path, driver string) []FieldError {
	var errs []FieldError
	if path == "" {
		errs = append(errs, FieldError{Field: prefix + ".path", Message: "path is required"})
	}
	if driver != "sqlite3" && driver != "sqlite" {
		errs = append(errs, FieldError{
			Field:   prefix + ".driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3' or 'sqlite'", driver),
		})
	}
	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError
	if cfg.Watch && cfg.Path == "" && !cfg.Git.Enabled {
		errs = append(errs, FieldError{Field: "rules.path", Message: "path is required when watch is enabled"})
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{Field: "rules.watch_debounce", Message: "must not be negative"})
	}

	git := &cfg.Git
	if !git.Enabled {
		return errs
	}
	if git.Repository == "" {
		errs = append(errs, FieldError{Field: "rules.git.repository", Message: "repository is required when git is enabled"})
	}
	if git.LocalPath == "" {
		errs = append(errs, FieldError{Field: "rules.git.local_path", Message: "local path is required when git is enabled"})
	}
	if git.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.depth", Message: "must not be negative"})
	}
	if git.PollInterval < 0 {
		errs = append(errs, FieldError{Field: "rules.git.poll_interval", Message: "must not be negative"})
	}
	switch git.Auth.Type {
	case "none":
	case "token":
		if git.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "token is required for token auth"})
		}
	case "ssh":
		if git.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "key path is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'none', 'token', or 'ssh'", git.Auth.Type),
		})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		errs = append(errs, validateSQLite("audit.sqlite", cfg.SQLite.Path, cfg.SQLite.Driver)...)
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "audit.recorder.async_buffer", Message: "must be at least 1"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "audit.recorder.write_timeout", Message: "must be positive"})
	}

	r := &cfg.Retention
	if r.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.retention_days", Message: "must not be negative"})
	}
	if r.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.max_records", Message: "must not be negative"})
	}
	if r.PruneSchedule != "" {
		if _, err := cron.ParseStandard(r.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", r.PruneSchedule, err),
			})
		}
	}
	if r.ArchiveBeforeDelete && r.ArchivePath == "" {
		errs = append(errs, FieldError{Field: "audit.retention.archive_path", Message: "archive path is required when archiving"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: "pattern is required",
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with '/'"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}
	if !strings.HasPrefix(cfg.HealthPath, "/") {
		errs = append(errs, FieldError{Field: "server.health_path", Message: "path must start with '/'"})
	}
	if !strings.HasPrefix(cfg.ReadyPath, "/") {
		errs = append(errs, FieldError{Field: "server.ready_path", Message: "path must start with '/'"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must be positive"})
	}
	return errs
}
