package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/internal/app"
	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/rules/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long: `Apply or roll back the embedded PostgreSQL schema migrations of the rule
repository. Requires storage.backend: postgres. SQLite databases create
their schema on open.

Examples:
  rulesengine migrate up
  rulesengine migrate down 1
  rulesengine migrate version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator("migrate up", func(m *repository.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [STEPS]",
	Short: "Roll back migrations (all when STEPS is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return cli.NewConfigError("steps", fmt.Sprintf("invalid step count %q", args[0]))
			}
			steps = n
		}
		return withMigrator("migrate down", func(m *repository.Migrator) error {
			if err := m.Down(steps); err != nil {
				return err
			}
			return printVersion(cmd, m)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator("migrate version", func(m *repository.Migrator) error {
			return printVersion(cmd, m)
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrator(name string, fn func(m *repository.Migrator) error) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	if loaded.Storage.Backend != "postgres" {
		return cli.NewConfigError("storage.backend", "migrations require the postgres backend")
	}

	db, err := repository.OpenPostgres(context.Background(), app.PostgresConfig(&loaded.Storage))
	if err != nil {
		return cli.NewCommandError(name, err)
	}
	m, err := repository.NewMigrator(db, nil)
	if err != nil {
		db.Close()
		return cli.NewCommandError(name, err)
	}
	defer m.Close()

	if err := fn(m); err != nil {
		return cli.NewCommandError(name, err)
	}
	return nil
}

func printVersion(cmd *cobra.Command, m *repository.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (%s)\n", version, state)
	return nil
}
