package app

import (
	"context"
	"fmt"

	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/rules/source"
	"mercator-hq/rulesengine/pkg/telemetry/logging"
)

// Rule source names used in metrics.
const (
	sourceGit  = "git"
	sourceFile = "file"
)

// HasSource reports whether a rules path or git repository is configured.
func (a *App) HasSource() bool {
	return a.git != nil || a.Config.Rules.Path != ""
}

// SyncRules loads the configured rule source into the store. The git
// source wins over rules.path. Without a source it returns nil, nil.
// Calls are serialized.
func (a *App) SyncRules(ctx context.Context) (*source.SyncResult, error) {
	if !a.HasSource() {
		return nil, nil
	}

	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	name := sourceFile
	if a.git != nil {
		name = sourceGit
	}

	result, origin, err := a.sync(ctx)
	if result != nil {
		a.Metrics.RecordSync(name, len(result.Added), len(result.Updated), len(result.Unchanged), err)
	} else {
		a.Metrics.RecordSync(name, 0, 0, 0, err)
	}
	a.tracker.Observe(origin, err)
	if err != nil {
		return nil, err
	}

	logCtx := logging.WithActor(logging.WithTenantID(ctx, a.Config.Engine.TenantID), a.Config.Rules.SyncActor)
	a.Logger.InfoContext(logCtx, "rules synced",
		"origin", result.Origin,
		"added", len(result.Added),
		"updated", len(result.Updated),
		"unchanged", len(result.Unchanged),
		"groups", len(result.Groups),
	)
	a.refreshActiveRules(ctx)
	return result, nil
}

func (a *App) sync(ctx context.Context) (*source.SyncResult, string, error) {
	if a.git == nil {
		path := a.Config.Rules.Path
		result, err := a.syncer.SyncPath(ctx, path)
		return result, path, err
	}

	if !a.gitOpen {
		if err := a.git.Open(ctx); err != nil {
			return nil, a.Config.Rules.Git.Repository, err
		}
		a.gitOpen = true
	}
	bundle, origin, err := a.git.Load()
	if err != nil {
		return nil, a.Config.Rules.Git.Repository, err
	}
	result, err := a.syncer.Apply(ctx, bundle, origin)
	return result, origin, err
}

// refreshActiveRules updates the active rules gauge. Failures are logged.
func (a *App) refreshActiveRules(ctx context.Context) {
	active, err := a.Store.GetRules(ctx, rules.RuleFilter{Status: rules.StatusActive})
	if err != nil {
		a.Logger.Warn("failed to count active rules", "error", err)
		return
	}
	counts := make(map[string]int)
	for _, r := range active {
		counts[r.Category]++
	}
	a.Metrics.SetActiveRules(counts)
}

// watchSources starts the file watcher or git poller when configured and
// returns a function that waits for them to stop after ctx is done.
func (a *App) watchSources(ctx context.Context) (wait func(), err error) {
	reload := func(ctx context.Context) error {
		_, err := a.SyncRules(ctx)
		return err
	}
	done := make(chan struct{})

	switch {
	case a.git != nil && a.Config.Rules.Git.PollInterval > 0:
		go func() {
			defer close(done)
			a.git.Poll(ctx, a.Config.Rules.Git.PollInterval, reload)
		}()
	case a.git == nil && a.Config.Rules.Watch && a.Config.Rules.Path != "":
		watcher, err := source.NewFileWatcher(source.WatcherConfig{
			Path:     a.Config.Rules.Path,
			Debounce: a.Config.Rules.WatchDebounce,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to watch rules: %w", err)
		}
		go func() {
			defer close(done)
			if err := watcher.Watch(ctx, reload); err != nil {
				a.Logger.Error("rules watcher stopped", "error", err)
			}
		}()
	default:
		close(done)
	}

	return func() { <-done }, nil
}
