package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/rulesengine/internal/app"
	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/config"
	"mercator-hq/rulesengine/pkg/rules"
)

// loadConfig loads the configuration named by --config once per process.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	return config.GetConfig(), nil
}

// openApp builds an App for a one-shot command. Logging is reduced to
// warnings unless --verbose is set. mutate may adjust a copy of the loaded
// configuration.
func openApp(ctx context.Context, mutate func(cfg *config.Config)) (*app.App, error) {
	loaded, err := loadConfig()
	if err != nil {
		return nil, err
	}

	cfg := *loaded
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	} else {
		cfg.Telemetry.Logging.Level = "warn"
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := app.New(ctx, &cfg, app.Options{Version: Version})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// rulesFrom points a command at rulesPath on a private in-memory store
// instead of the configured repository. An empty path keeps the
// configuration unchanged.
func rulesFrom(rulesPath string) func(cfg *config.Config) {
	return func(cfg *config.Config) {
		if rulesPath == "" {
			return
		}
		cfg.Storage.Backend = "memory"
		cfg.Audit.Enabled = false
		cfg.Rules.Path = rulesPath
		cfg.Rules.Watch = false
		cfg.Rules.Git.Enabled = false
	}
}

// openRulesApp opens an App and syncs rulesPath into it when given.
func openRulesApp(ctx context.Context, rulesPath string) (*app.App, error) {
	a, err := openApp(ctx, rulesFrom(rulesPath))
	if err != nil {
		return nil, err
	}
	if rulesPath != "" {
		if _, err := a.SyncRules(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load rules from %s: %w", rulesPath, err)
		}
	}
	return a, nil
}

// writeResult writes v in the format selected by --output.
func writeResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(outputFlag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), v)
}

// readContext reads an input context from a YAML or JSON file.
func readContext(path string) (rules.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context %q: %w", path, err)
	}
	return parseContext(data)
}

func parseContext(data []byte) (rules.Context, error) {
	var input rules.Context
	if err := yaml.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse context: %w", err)
	}
	if input == nil {
		input = rules.Context{}
	}
	return input, nil
}

// actorFlag is the --actor value shared by mutating commands.
var actorFlag string

func addActorFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&actorFlag, "actor", defaultActor(), "actor recorded in the audit trail")
}

func defaultActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli"
}

// withApp runs fn against an App built from the loaded configuration and
// wraps its error as a CommandError named name.
func withApp(name string, fn func(ctx context.Context, a *app.App) error) error {
	ctx := context.Background()
	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		return cli.NewCommandError(name, err)
	}
	return nil
}
