package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/internal/app"
	"mercator-hq/rulesengine/pkg/cli"
	"mercator-hq/rulesengine/pkg/rules"
	"mercator-hq/rulesengine/pkg/rules/source"
)

var ruleFlags struct {
	category string
	status   string
	at       string
	name     string
}

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Inspect and manage stored rules",
	Long: `Inspect and manage rules in the configured repository.

Every mutation creates a new version and an audit record attributed to
--actor.

Examples:
  rulesengine rule list --category orders --status active
  rulesengine rule show vip-discount --at 2024-06-01T00:00:00Z
  rulesengine rule history vip-discount
  rulesengine rule diff vip-discount 1 3
  rulesengine rule rollback vip-discount 2 --actor alice
  rulesengine rule clone vip-discount --name "VIP discount v2"`,
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules",
	Args:  cobra.NoArgs,
	RunE:  listRules,
}

var ruleShowCmd = &cobra.Command{
	Use:   "show RULE_ID",
	Short: "Show a rule, optionally as it was at a point in time",
	Args:  cobra.ExactArgs(1),
	RunE:  showRule,
}

var ruleHistoryCmd = &cobra.Command{
	Use:   "history RULE_ID",
	Short: "List the versions of a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  ruleHistory,
}

var ruleDiffCmd = &cobra.Command{
	Use:   "diff RULE_ID FROM TO",
	Short: "Compare two versions of a rule",
	Args:  cobra.ExactArgs(3),
	RunE:  diffRule,
}

var ruleRollbackCmd = &cobra.Command{
	Use:   "rollback RULE_ID VERSION",
	Short: "Restore a previous version as a new version",
	Args:  cobra.ExactArgs(2),
	RunE:  rollbackRule,
}

var ruleActivateCmd = &cobra.Command{
	Use:   "activate RULE_ID",
	Short: "Activate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleStatus(cmd, args[0], true)
	},
}

var ruleDeactivateCmd = &cobra.Command{
	Use:   "deactivate RULE_ID",
	Short: "Deactivate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleStatus(cmd, args[0], false)
	},
}

var ruleDeleteCmd = &cobra.Command{
	Use:   "delete RULE_ID",
	Short: "Archive a rule",
	Long:  `Archive a rule. Its version history is kept.`,
	Args:  cobra.ExactArgs(1),
	RunE:  deleteRule,
}

var ruleCloneCmd = &cobra.Command{
	Use:   "clone RULE_ID",
	Short: "Copy a rule into a new draft rule",
	Args:  cobra.ExactArgs(1),
	RunE:  cloneRule,
}

var ruleSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the configured rule source into the store once",
	Args:  cobra.NoArgs,
	RunE:  syncRules,
}

func init() {
	rootCmd.AddCommand(ruleCmd)
	ruleCmd.AddCommand(ruleListCmd, ruleShowCmd, ruleHistoryCmd, ruleDiffCmd, ruleRollbackCmd,
		ruleActivateCmd, ruleDeactivateCmd, ruleDeleteCmd, ruleCloneCmd, ruleSyncCmd)

	ruleListCmd.Flags().StringVar(&ruleFlags.category, "category", "", "filter by category")
	ruleListCmd.Flags().StringVar(&ruleFlags.status, "status", "", "filter by status (draft, active, inactive, archived)")
	ruleShowCmd.Flags().StringVar(&ruleFlags.at, "at", "", "show the rule as of this RFC3339 time")
	ruleCloneCmd.Flags().StringVar(&ruleFlags.name, "name", "", "name of the clone (default: \"<name> (copy)\")")

	for _, c := range []*cobra.Command{ruleRollbackCmd, ruleActivateCmd, ruleDeactivateCmd, ruleDeleteCmd, ruleCloneCmd} {
		addActorFlag(c)
	}
}

type ruleTable []*rules.BusinessRule

func (t ruleTable) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID,
			r.Name,
			r.Category,
			strconv.Itoa(r.Priority),
			string(r.Status),
			strconv.Itoa(r.Version),
			r.UpdatedAt.Format(time.RFC3339),
		})
	}
	return []string{"ID", "NAME", "CATEGORY", "PRIORITY", "STATUS", "VERSION", "UPDATED"}, rows
}

type versionTable []*rules.RuleVersion

func (t versionTable) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(t))
	for _, v := range t {
		rows = append(rows, []string{
			strconv.Itoa(v.Version),
			v.CreatedAt.Format(time.RFC3339),
			v.CreatedBy,
			string(v.Content.Status),
			v.ChangeReason,
		})
	}
	return []string{"VERSION", "CREATED", "BY", "STATUS", "REASON"}, rows
}

type syncView struct {
	*source.SyncResult
}

func (v syncView) Table() ([]string, [][]string) {
	rows := [][]string{
		{"added", strconv.Itoa(len(v.Added))},
		{"updated", strconv.Itoa(len(v.Updated))},
		{"unchanged", strconv.Itoa(len(v.Unchanged))},
		{"groups", strconv.Itoa(len(v.Groups))},
	}
	return []string{"ORIGIN " + v.Origin, "RULES"}, rows
}

type changeTable []rules.FieldChange

func (t changeTable) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		rows = append(rows, []string{c.Field, c.Type, string(c.OldValue), string(c.NewValue)})
	}
	return []string{"FIELD", "CHANGE", "OLD", "NEW"}, rows
}

func listRules(cmd *cobra.Command, args []string) error {
	filter := rules.RuleFilter{Category: ruleFlags.category}
	if ruleFlags.status != "" {
		filter.Status = rules.RuleStatus(ruleFlags.status)
		if !filter.Status.IsValid() {
			return cli.NewConfigError("status", fmt.Sprintf("unknown status %q", ruleFlags.status))
		}
	}

	return withApp("rule list", func(ctx context.Context, a *app.App) error {
		list, err := a.Store.GetRules(ctx, filter)
		if err != nil {
			return err
		}
		return writeResult(cmd, ruleTable(list))
	})
}

func showRule(cmd *cobra.Command, args []string) error {
	var at time.Time
	if ruleFlags.at != "" {
		parsed, err := time.Parse(time.RFC3339, ruleFlags.at)
		if err != nil {
			return cli.NewConfigError("at", fmt.Sprintf("invalid time: %v", err))
		}
		at = parsed
	}

	return withApp("rule show", func(ctx context.Context, a *app.App) error {
		if at.IsZero() {
			rule, err := a.Store.GetRule(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), rule)
		}

		rule, err := a.Store.GetRuleAtTime(ctx, args[0], at)
		if err != nil {
			return err
		}
		if rule == nil {
			return fmt.Errorf("rule %s did not exist at %s", args[0], at.Format(time.RFC3339))
		}
		return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), rule)
	})
}

func ruleHistory(cmd *cobra.Command, args []string) error {
	return withApp("rule history", func(ctx context.Context, a *app.App) error {
		versions, err := a.Store.GetRuleVersions(ctx, args[0])
		if err != nil {
			return err
		}
		return writeResult(cmd, versionTable(versions))
	})
}

func diffRule(cmd *cobra.Command, args []string) error {
	from, err := parseVersion(args[1])
	if err != nil {
		return err
	}
	to, err := parseVersion(args[2])
	if err != nil {
		return err
	}

	return withApp("rule diff", func(ctx context.Context, a *app.App) error {
		changes, err := a.Store.DiffVersions(ctx, args[0], from, to)
		if err != nil {
			return err
		}
		return writeResult(cmd, changeTable(changes))
	})
}

func rollbackRule(cmd *cobra.Command, args []string) error {
	target, err := parseVersion(args[1])
	if err != nil {
		return err
	}

	return withApp("rule rollback", func(ctx context.Context, a *app.App) error {
		rule, err := a.Store.RollbackRule(ctx, args[0], target, actorFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s to version %d as version %d\n", rule.ID, target, rule.Version)
		return nil
	})
}

func setRuleStatus(cmd *cobra.Command, id string, active bool) error {
	name := "rule deactivate"
	if active {
		name = "rule activate"
	}

	return withApp(name, func(ctx context.Context, a *app.App) error {
		var (
			rule *rules.BusinessRule
			err  error
		)
		if active {
			rule, err = a.Engine.ActivateRule(ctx, id, actorFlag)
		} else {
			rule, err = a.Engine.DeactivateRule(ctx, id, actorFlag)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule %s is %s (version %d)\n", rule.ID, rule.Status, rule.Version)
		return nil
	})
}

func deleteRule(cmd *cobra.Command, args []string) error {
	return withApp("rule delete", func(ctx context.Context, a *app.App) error {
		deleted, err := a.Store.DeleteRule(ctx, args[0], actorFlag)
		if err != nil {
			return err
		}
		if !deleted {
			return rules.NewRuleNotFound(args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule %s archived\n", args[0])
		return nil
	})
}

func cloneRule(cmd *cobra.Command, args []string) error {
	return withApp("rule clone", func(ctx context.Context, a *app.App) error {
		name := ruleFlags.name
		if name == "" {
			src, err := a.Store.GetRule(ctx, args[0])
			if err != nil {
				return err
			}
			name = src.Name + " (copy)"
		}
		clone, err := a.Store.CloneRule(ctx, args[0], name, actorFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cloned %s as %s (%s)\n", args[0], clone.ID, clone.Name)
		return nil
	})
}

func syncRules(cmd *cobra.Command, args []string) error {
	return withApp("rule sync", func(ctx context.Context, a *app.App) error {
		if !a.HasSource() {
			return cli.NewConfigError("rules.path", "no rule source configured")
		}
		result, err := a.SyncRules(ctx)
		if err != nil {
			return err
		}
		return writeResult(cmd, syncView{result})
	})
}

func parseVersion(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, cli.NewConfigError("version", fmt.Sprintf("invalid version %q", s))
	}
	return v, nil
}
