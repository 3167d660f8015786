package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/rules/source"
)

var lintCmd = &cobra.Command{
	Use:   "lint PATH...",
	Short: "Validate rule files",
	Long: `Parse and validate rule files or directories without touching the store.

Each path is loaded like a sync would load it: YAML must decode with known
fields only, every rule and group needs an explicit unique id, conditions
must use known operators, and group members must be defined.

The command exits with status 2 when any path is invalid.

Examples:
  # Lint a directory
  rulesengine lint rules/

  # JSON output for CI
  rulesengine lint rules/orders.yaml rules/payments.yaml -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

// lintResult is the outcome of linting one path.
type lintResult struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Files  int      `json:"files"`
	Rules  int      `json:"rules"`
	Groups int      `json:"groups"`
	Errors []string `json:"errors,omitempty"`
}

type lintReport []lintResult

func (r lintReport) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(r))
	for _, res := range r {
		status := "ok"
		if !res.Valid {
			status = "invalid"
		}
		detail := ""
		if len(res.Errors) > 0 {
			detail = res.Errors[0]
			if len(res.Errors) > 1 {
				detail += fmt.Sprintf(" (+%d more)", len(res.Errors)-1)
			}
		}
		rows = append(rows, []string{res.Path, status, strconv.Itoa(res.Rules), strconv.Itoa(res.Groups), detail})
	}
	return []string{"PATH", "STATUS", "RULES", "GROUPS", "ERROR"}, rows
}

func lintRules(cmd *cobra.Command, args []string) error {
	report := make(lintReport, 0, len(args))
	invalid := 0
	for _, path := range args {
		res := lintPath(path)
		if !res.Valid {
			invalid++
		}
		report = append(report, res)
	}

	if err := writeResult(cmd, report); err != nil {
		return err
	}
	if invalid > 0 {
		return cli.Failuref("%d of %d paths have invalid rules", invalid, len(args))
	}
	return nil
}

func lintPath(path string) lintResult {
	res := lintResult{Path: path}

	bundle, err := source.Load(path)
	if err != nil {
		res.Errors = []string{err.Error()}
		return res
	}
	res.Files = len(bundle.Files)
	res.Rules = len(bundle.Rules)
	res.Groups = len(bundle.Groups)

	if err := bundle.Validate(); err != nil {
		res.Errors = splitErrors(err)
		return res
	}
	res.Valid = true
	return res
}

// splitErrors flattens errors.Join results into one message per error.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
