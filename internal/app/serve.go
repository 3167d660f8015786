package app

import (
	"context"
	"fmt"

	"mercator-hq/rulesengine/pkg/server"
)

// Serve syncs rules, starts audit pruning and source watching, and runs the
// operations server until ctx is cancelled.
func (a *App) Serve(ctx context.Context, build server.BuildInfo) error {
	if _, err := a.SyncRules(ctx); err != nil {
		return fmt.Errorf("initial rules sync failed: %w", err)
	}
	if !a.HasSource() {
		a.refreshActiveRules(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start audit retention: %w", err)
		}
		defer a.pruner.Stop()
		if next := a.pruner.NextPruning(); next != nil {
			a.Logger.Debug("audit retention scheduled", "next_pruning", next)
		}
	}

	wait, err := a.watchSources(ctx)
	if err != nil {
		return err
	}
	defer wait()

	opts := []server.Option{
		server.WithLogger(a.Logger),
		server.WithBuildInfo(build),
	}
	if a.Config.Telemetry.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(a.Metrics.Handler()))
	}
	srv := server.New(&a.Config.Server, a.Health, a.Config.Telemetry.Metrics.Path, opts...)

	a.Logger.Info("rules engine started",
		"tenant_id", a.Config.Engine.TenantID,
		"storage", a.Config.Storage.Backend,
		"audit", a.Config.Audit.Enabled,
		"listen_address", a.Config.Server.ListenAddress,
	)
	err = srv.Start(ctx)
	cancel()
	return err
}
