package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/audit/recorder"
	"mercator-hq/rulesengine/pkg/audit/retention"
	"mercator-hq/rulesengine/pkg/config"
	"mercator-hq/rulesengine/pkg/rules/engine"
	"mercator-hq/rulesengine/pkg/rules/simulation"
	"mercator-hq/rulesengine/pkg/rules/source"
	"mercator-hq/rulesengine/pkg/rules/store"
	"mercator-hq/rulesengine/pkg/telemetry/health"
	"mercator-hq/rulesengine/pkg/telemetry/logging"
	"mercator-hq/rulesengine/pkg/telemetry/metrics"
	"mercator-hq/rulesengine/pkg/telemetry/tracing"
)

// Options tune how an App is assembled.
type Options struct {
	// Version is reported by tracing as service.version.
	Version string

	// LogWriter receives log output. Default: os.Stderr.
	LogWriter io.Writer

	// SetDefaultLogger installs the App's logger as slog's default.
	SetDefaultLogger bool
}

// App holds every component of a configured rules engine.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Collector
	Tracer     *tracing.Tracer
	Repository store.Repository
	Store      *store.RuleStore
	Engine     *engine.RulesEngine
	Runner     *simulation.Runner
	Health     *health.Checker

	// AuditStorage and Recorder are nil when auditing is disabled.
	AuditStorage audit.Storage
	Recorder     *recorder.Recorder

	pruner  *retention.Pruner
	syncer  *source.Syncer
	tracker *health.SyncTracker

	syncMu  sync.Mutex
	git     *source.GitSource
	gitOpen bool
}

// New builds an App from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	logger, err := logging.New(logging.FromConfig(&cfg.Telemetry.Logging, opts.LogWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if opts.SetDefaultLogger {
		slog.SetDefault(logger)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		Health:  health.New(health.DefaultCheckTimeout),
		tracker: health.NewSyncTracker(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Tracer, err = tracing.New(&cfg.Telemetry.Tracing, opts.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	a.Repository, err = OpenRepository(ctx, &cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Health.RegisterCheck("repository", health.PingCheck(a.Repository))

	var sink audit.Sink = audit.NopSink{}
	if cfg.Audit.Enabled {
		a.AuditStorage, err = OpenAuditStorage(&cfg.Audit)
		if err != nil {
			return nil, err
		}
		a.Health.RegisterCheck("audit", health.PingCheck(a.AuditStorage))

		a.Recorder = recorder.NewRecorder(a.AuditStorage, &recorder.Config{
			AsyncBuffer:  cfg.Audit.Recorder.AsyncBuffer,
			WriteTimeout: cfg.Audit.Recorder.WriteTimeout,
		})
		a.Recorder.SetMetrics(a.Metrics)
		sink = a.Recorder

		a.pruner = retention.NewPruner(a.AuditStorage, &retention.Config{
			RetentionDays:       cfg.Audit.Retention.RetentionDays,
			PruneSchedule:       cfg.Audit.Retention.PruneSchedule,
			ArchiveBeforeDelete: cfg.Audit.Retention.ArchiveBeforeDelete,
			ArchivePath:         cfg.Audit.Retention.ArchivePath,
			MaxRecords:          cfg.Audit.Retention.MaxRecords,
		})
		a.pruner.SetMetrics(a.Metrics)
	}

	a.Store = store.New(cfg.Engine.TenantID, a.Repository, sink, logger)
	a.Store.SetMetrics(a.Metrics)

	engineConfig := engine.DefaultConfig().
		WithEvaluationTimeout(cfg.Engine.EvaluationTimeout).
		WithMaxRules(cfg.Engine.MaxRules)
	a.Engine, err = engine.New(a.Store, engineConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.Engine.SetMetrics(a.Metrics)
	a.Engine.SetTracer(a.Tracer.Tracer())

	a.Runner = simulation.New(a.Engine, logger)
	a.syncer = source.NewSyncer(a.Store, cfg.Rules.SyncActor, logger)

	if cfg.Rules.Git.Enabled {
		a.git, err = source.NewGitSource(gitConfig(&cfg.Rules.Git), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create git source: %w", err)
		}
	}
	if a.HasSource() {
		a.Health.RegisterCheck("rules_sync", a.tracker.Check)
	}

	return a, nil
}

// Pruner returns the audit pruner, or nil when auditing is disabled.
func (a *App) Pruner() *retention.Pruner {
	return a.pruner
}

// Close flushes the audit recorder and releases storage and tracing.
func (a *App) Close() error {
	var errs []error
	if a.Recorder != nil {
		errs = append(errs, a.Recorder.Close())
	}
	if a.AuditStorage != nil {
		errs = append(errs, a.AuditStorage.Close())
	}
	if a.Repository != nil {
		errs = append(errs, a.Repository.Close())
	}
	if a.Tracer != nil {
		errs = append(errs, a.Tracer.Shutdown(context.Background()))
	}
	return errors.Join(errs...)
}

func gitConfig(cfg *config.GitConfig) source.GitConfig {
	return source.GitConfig{
		Repository:   cfg.Repository,
		Branch:       cfg.Branch,
		Path:         cfg.Path,
		LocalPath:    cfg.LocalPath,
		Depth:        cfg.Depth,
		CleanOnStart: cfg.CleanOnStart,
		Timeout:      cfg.Timeout,
		Auth: source.GitAuth{
			Type:             cfg.Auth.Type,
			Token:            cfg.Auth.Token,
			SSHKeyPath:       cfg.Auth.SSHKeyPath,
			SSHKeyPassphrase: cfg.Auth.SSHKeyPassphrase,
		},
	}
}
