package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/internal/app"
	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/server"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rules engine",
	Long: `Sync the configured rule source into the store and run until interrupted.

While running, rule files are watched (rules.watch) or the git repository
is polled (rules.git.poll_interval), audit records are pruned on
audit.retention.prune_schedule, and the operations server exposes health,
readiness, version and Prometheus metrics.

Examples:
  # Start with a config file
  rulesengine serve --config /etc/rulesengine/rulesengine.yaml

  # Override the listen address
  rulesengine serve --listen 0.0.0.0:9090

  # Validate the configuration without starting
  rulesengine serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override the operations listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServe(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := *loaded

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	a, err := app.New(ctx, &cfg, app.Options{Version: Version, SetDefaultLogger: true})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer a.Close()

	build := server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate}
	if err := a.Serve(ctx, build); err != nil {
		return cli.NewCommandError("serve", err)
	}
	a.Logger.Info("rules engine stopped")
	return nil
}
