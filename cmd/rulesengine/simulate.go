package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/rules/simulation"
)

var simulateFlags struct {
	rulesPath string
	file      string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate a batch of sample contexts",
	Long: `Evaluate sample contexts against a set of rules and report which rules match
each context. Rule status and effective dates are ignored so draft rules can
be tried before activation. Nothing is written to the store.

Simulation Format (YAML):
  name: checkout review
  rule_ids: [high-value, vip-discount]   # optional, defaults to all rules
  sample_contexts:
    - id: big-order
      context:
        order: {total: 1500}

Interrupting the command returns the contexts evaluated so far with status
"cancelled".

Examples:
  rulesengine simulate --rules rules/ --file checkout.yaml`,
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simulateFlags.rulesPath, "rules", "", "rules file or directory (uses the configured store if empty)")
	simulateCmd.Flags().StringVarP(&simulateFlags.file, "file", "f", "", "simulation file (required)")
	simulateCmd.MarkFlagRequired("file")
}

type simulationView struct {
	*simulation.SimulationResult
}

func (v simulationView) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(v.Results)+1)
	for _, r := range v.Results {
		rows = append(rows, []string{
			r.ContextID,
			strings.Join(r.MatchedRules, ","),
			strconv.Itoa(r.RulesEvaluated),
			r.StoppedByRule,
		})
	}
	rows = append(rows, []string{
		v.Status,
		fmt.Sprintf("%d/%d contexts matched", v.ContextsMatched, v.TotalContexts),
		"",
		"",
	})
	return []string{"CONTEXT", "MATCHED", "EVALUATED", "STOPPED_BY"}, rows
}

func runSimulation(cmd *cobra.Command, args []string) error {
	sim, err := simulation.LoadSimulation(simulateFlags.file)
	if err != nil {
		return cli.NewConfigError("file", err.Error())
	}

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	a, err := openRulesApp(ctx, simulateFlags.rulesPath)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}
	defer a.Close()

	result, err := a.Runner.RunSimulation(ctx, *sim)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}
	return writeResult(cmd, simulationView{result})
}
