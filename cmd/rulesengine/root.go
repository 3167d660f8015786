package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/pkg/cli"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	outputFlag string
)

var rootCmd = &cobra.Command{
	Use:   "rulesengine",
	Short: "Business rules engine",
	Long: `Rulesengine evaluates prioritized business rules against input contexts.

Rules are defined in YAML, synced from files or git into a versioned store,
and evaluated in priority order. Every mutation is versioned and audited.

Configuration is read from --config and RULESENGINE_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the command's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "text", "output format: text, json, csv")
}
