package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/rules"
)

var evaluateFlags struct {
	rulesPath   string
	contextFile string
	contextData string
	category    string
	group       string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate an input context",
	Long: `Evaluate the active rules against an input context and print the matched
rules and their effects.

With --rules the rules are loaded from files into a private in-memory store;
otherwise the configured repository is used.

Examples:
  # Evaluate a JSON context against a rules directory
  rulesengine evaluate --rules rules/ --context order.json

  # Inline context, restricted to one category
  rulesengine evaluate --data '{"order": {"total": 1500}}' --category orders

  # Evaluate a rule group
  rulesengine evaluate --group checkout --context order.yaml -o json`,
	RunE: evaluateContext,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateFlags.rulesPath, "rules", "", "rules file or directory (uses the configured store if empty)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.contextFile, "context", "", "input context file (JSON or YAML)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.contextData, "data", "", "inline input context (JSON or YAML)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.category, "category", "", "only evaluate rules of this category")
	evaluateCmd.Flags().StringVar(&evaluateFlags.group, "group", "", "evaluate the rules of this group")
}

// evaluationView renders an evaluation result as one row per effect.
type evaluationView struct {
	*rules.EvaluationResult
}

func (v evaluationView) Table() ([]string, [][]string) {
	headers := []string{"RULE", "ACTION", "DETAIL"}
	var rows [][]string

	withEffect := make(map[string]bool)
	for _, e := range v.Effects {
		withEffect[e.RuleID] = true
		rows = append(rows, []string{e.RuleID, string(e.Effect.ActionType), effectDetail(e.Effect)})
	}
	for _, id := range v.MatchedRuleIDs {
		if !withEffect[id] {
			rows = append(rows, []string{id, "-", ""})
		}
	}
	if v.ProcessingStopped {
		rows = append(rows, []string{v.StoppedByRule, "stop_processing", ""})
	}
	rows = append(rows, []string{
		"",
		"",
		"evaluated " + strconv.Itoa(v.RulesEvaluated) + ", matched " + strconv.Itoa(v.RulesMatched),
	})
	return headers, rows
}

func effectDetail(e rules.Effect) string {
	var m map[string]interface{}
	switch {
	case e.Changes != nil:
		m = e.Changes
	case e.Escalation != nil:
		m = e.Escalation
	case e.Notification != nil:
		m = e.Notification
	default:
		return ""
	}
	parts := make([]string, 0, len(m))
	for k, val := range m {
		parts = append(parts, fmt.Sprintf("%s=%v", k, val))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func evaluateContext(cmd *cobra.Command, args []string) error {
	input, err := evaluationInput()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openRulesApp(ctx, evaluateFlags.rulesPath)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	defer a.Close()

	var result *rules.EvaluationResult
	if evaluateFlags.group != "" {
		result, err = a.Engine.EvaluateGroup(ctx, evaluateFlags.group, input)
	} else {
		result, err = a.Engine.Evaluate(ctx, input, evaluateFlags.category)
	}
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	return writeResult(cmd, evaluationView{result})
}

func evaluationInput() (rules.Context, error) {
	switch {
	case evaluateFlags.contextFile != "" && evaluateFlags.contextData != "":
		return nil, cli.NewConfigError("context", "--context and --data are mutually exclusive")
	case evaluateFlags.contextFile != "":
		return readContext(evaluateFlags.contextFile)
	case evaluateFlags.contextData != "":
		return parseContext([]byte(evaluateFlags.contextData))
	default:
		return nil, cli.NewConfigError("context", "one of --context or --data is required")
	}
}
