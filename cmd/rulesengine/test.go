package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/rules/simulation"
)

var testFlags struct {
	rulesPath string
	suiteFile string
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run rule test cases",
	Long: `Run test cases against single rules. A case passes when the rule's match
outcome equals expected_match and, when it matches, the executed action
types equal expected_actions.

Test Suite Format (YAML):
  tests:
    - rule_id: high-value-orders
      name: large order escalates
      input_context:
        order: {total: 1500}
      expected_match: true
      expected_actions: [escalate]

The command exits with status 2 when any test fails.

Examples:
  rulesengine test --rules rules/ --suite rules_test.yaml
  rulesengine test --suite rules_test.yaml -o json`,
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&testFlags.rulesPath, "rules", "", "rules file or directory (uses the configured store if empty)")
	testCmd.Flags().StringVar(&testFlags.suiteFile, "suite", "", "test suite file (required)")
	testCmd.MarkFlagRequired("suite")
}

type suiteView struct {
	*simulation.SuiteResult
}

func (v suiteView) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(v.Outcomes)+1)
	for _, o := range v.Outcomes {
		rule, name, detail := "", "", o.Error
		if o.Details != nil {
			rule, name = o.Details.RuleID, o.Details.Name
			if detail == "" && !o.Passed {
				detail = failureDetail(o.Details)
			}
		}
		result := "PASS"
		if !o.Passed {
			result = "FAIL"
		}
		rows = append(rows, []string{rule, name, result, detail})
	}
	rows = append(rows, []string{"", "", fmt.Sprintf("%d/%d passed", v.Passed, v.Total), ""})
	return []string{"RULE", "TEST", "RESULT", "DETAIL"}, rows
}

func failureDetail(d *simulation.TestDetails) string {
	if !d.MatchCorrect {
		return fmt.Sprintf("matched=%t, expected %t", d.Matched, !d.Matched)
	}
	if !d.ActionsCorrect {
		return fmt.Sprintf("actions %v, expected %v", actionNames(d.ActualActions), actionNames(d.ExpectedActions))
	}
	return ""
}

func actionNames(types []rules.ActionType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func runTests(cmd *cobra.Command, args []string) error {
	cases, err := simulation.LoadSuite(testFlags.suiteFile)
	if err != nil {
		return cli.NewConfigError("suite", err.Error())
	}

	ctx := context.Background()
	a, err := openRulesApp(ctx, testFlags.rulesPath)
	if err != nil {
		return cli.NewCommandError("test", err)
	}
	defer a.Close()

	result := a.Runner.RunSuite(ctx, cases)
	if err := writeResult(cmd, suiteView{result}); err != nil {
		return err
	}
	if result.Failed > 0 {
		return cli.Failuref("%d of %d tests failed", result.Failed, result.Total)
	}
	return nil
}
