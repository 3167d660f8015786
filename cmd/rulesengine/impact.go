package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/rules/simulation"
)

var impactFlags struct {
	rulesPath    string
	file         string
	analysisType string
}

var impactCmd = &cobra.Command{
	Use:   "impact RULE_ID",
	Short: "Estimate the impact of activating or deactivating a rule",
	Long: `Compare how many sample contexts a rule matches now with how many it would
match after activation or deactivation. The stored rule is not modified.

Sample contexts are read from the sample_contexts list of a simulation file.

Examples:
  rulesengine impact vip-discount --type deactivate --file samples.yaml
  rulesengine impact new-fraud-check --type activate --file samples.yaml --rules rules/`,
	Args: cobra.ExactArgs(1),
	RunE: analyzeImpact,
}

func init() {
	rootCmd.AddCommand(impactCmd)

	impactCmd.Flags().StringVar(&impactFlags.rulesPath, "rules", "", "rules file or directory (uses the configured store if empty)")
	impactCmd.Flags().StringVarP(&impactFlags.file, "file", "f", "", "file with sample_contexts (required)")
	impactCmd.Flags().StringVar(&impactFlags.analysisType, "type", simulation.AnalysisDeactivate, "analysis type: activate, deactivate")
	impactCmd.MarkFlagRequired("file")
}

type impactView struct {
	*simulation.ImpactAnalysisResult
}

func (v impactView) Table() ([]string, [][]string) {
	delta := strconv.Itoa(v.Delta)
	if v.Delta > 0 {
		delta = "+" + delta
	}
	return []string{"RULE", "ANALYSIS", "CONTEXTS", "CURRENT", "PROJECTED", "DELTA", "AFFECTED"},
		[][]string{{
			v.RuleID,
			v.AnalysisType,
			strconv.Itoa(v.TotalContexts),
			strconv.Itoa(v.CurrentMatches),
			strconv.Itoa(v.ProjectedMatches),
			delta,
			strings.Join(v.AffectedContexts, ","),
		}}
}

func analyzeImpact(cmd *cobra.Command, args []string) error {
	switch impactFlags.analysisType {
	case simulation.AnalysisActivate, simulation.AnalysisDeactivate:
	default:
		return cli.NewConfigError("type", "must be activate or deactivate")
	}

	sim, err := simulation.LoadSimulation(impactFlags.file)
	if err != nil {
		return cli.NewConfigError("file", err.Error())
	}

	ctx := context.Background()
	a, err := openRulesApp(ctx, impactFlags.rulesPath)
	if err != nil {
		return cli.NewCommandError("impact", err)
	}
	defer a.Close()

	result, err := a.Runner.AnalyzeImpact(ctx, args[0], impactFlags.analysisType, sim.SampleContexts)
	if err != nil {
		return cli.NewCommandError("impact", err)
	}
	return writeResult(cmd, impactView{result})
}
