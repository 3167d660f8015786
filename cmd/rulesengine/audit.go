package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/rulesengine/internal/app"
	"mercator-hq/rulesengine/pkg/audit"
	"mercator-hq/rulesengine/pkg/audit/export"
	"mercator-hq/rulesengine/pkg/audit/recorder"
	"mercator-hq/rulesengine/pkg/audit/retention"
	"mercator-hq/rulesengine/pkg/cli"
)

var auditFlags struct {
	since      string
	until      string
	actor      string
	action     string
	entityType string
	entityID   string
	limit      int
	offset     int
	sortOrder  string
	format     string
	file       string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and maintain the audit trail",
	Long: `Query, export, verify and prune the audit trail of rule and group changes.

Examples:
  # Changes to one rule, newest first
  rulesengine audit list --entity-id vip-discount

  # Everything alice did in June
  rulesengine audit list --actor alice --since 2024-06-01T00:00:00Z --until 2024-07-01T00:00:00Z

  # Export as CSV
  rulesengine audit export --format csv --file audit.csv

  # Apply the retention policy now
  rulesengine audit prune`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records",
	Args:  cobra.NoArgs,
	RunE:  listAudit,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records as JSON or CSV",
	Args:  cobra.NoArgs,
	RunE:  exportAudit,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the content hash of audit records",
	Long: `Recompute the content hash of every selected audit record and report
records whose before and after snapshots no longer match their hash.
The command exits with status 2 when a mismatch is found.`,
	Args: cobra.NoArgs,
	RunE: verifyAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the audit retention policy once",
	Args:  cobra.NoArgs,
	RunE:  pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditExportCmd, auditVerifyCmd, auditPruneCmd)

	for _, c := range []*cobra.Command{auditListCmd, auditExportCmd, auditVerifyCmd} {
		c.Flags().StringVar(&auditFlags.since, "since", "", "only records at or after this RFC3339 time")
		c.Flags().StringVar(&auditFlags.until, "until", "", "only records at or before this RFC3339 time")
		c.Flags().StringVar(&auditFlags.actor, "actor", "", "filter by actor")
		c.Flags().StringVar(&auditFlags.action, "action", "", "filter by action (create, update, rollback, ...)")
		c.Flags().StringVar(&auditFlags.entityType, "entity-type", "", "filter by entity type (rule, group)")
		c.Flags().StringVar(&auditFlags.entityID, "entity-id", "", "filter by entity id")
		c.Flags().IntVar(&auditFlags.limit, "limit", audit.DefaultLimit, "max records")
		c.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
		c.Flags().StringVar(&auditFlags.sortOrder, "sort", "desc", "sort order by timestamp: asc, desc")
	}
	auditExportCmd.Flags().StringVar(&auditFlags.format, "format", "json", "export format: json, csv")
	auditExportCmd.Flags().StringVar(&auditFlags.file, "file", "", "output file (default: stdout)")
}

type auditTable []*audit.Record

func (t auditTable) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.Timestamp.Format(time.RFC3339),
			r.Actor,
			r.Action,
			r.EntityType,
			r.EntityID,
			r.Reason,
		})
	}
	return []string{"TIMESTAMP", "ACTOR", "ACTION", "TYPE", "ENTITY", "REASON"}, rows
}

func buildAuditQuery() (*audit.Query, error) {
	loaded, err := loadConfig()
	if err != nil {
		return nil, err
	}

	query := &audit.Query{
		TenantID:   loaded.Engine.TenantID,
		Actor:      auditFlags.actor,
		Action:     auditFlags.action,
		EntityType: auditFlags.entityType,
		EntityID:   auditFlags.entityID,
		Limit:      auditFlags.limit,
		Offset:     auditFlags.offset,
		SortOrder:  auditFlags.sortOrder,
	}
	if auditFlags.since != "" {
		since, err := time.Parse(time.RFC3339, auditFlags.since)
		if err != nil {
			return nil, cli.NewConfigError("since", fmt.Sprintf("invalid time: %v", err))
		}
		query.StartTime = &since
	}
	if auditFlags.until != "" {
		until, err := time.Parse(time.RFC3339, auditFlags.until)
		if err != nil {
			return nil, cli.NewConfigError("until", fmt.Sprintf("invalid time: %v", err))
		}
		query.EndTime = &until
	}
	if err := query.Validate(); err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	return query, nil
}

// queryAudit opens the configured audit storage and runs the query built
// from the flags.
func queryAudit(ctx context.Context) ([]*audit.Record, error) {
	query, err := buildAuditQuery()
	if err != nil {
		return nil, err
	}
	loaded, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := app.OpenAuditStorage(&loaded.Audit)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Query(ctx, query)
}

func listAudit(cmd *cobra.Command, args []string) error {
	records, err := queryAudit(context.Background())
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}
	return writeResult(cmd, auditTable(records))
}

func exportAudit(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(auditFlags.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	ctx := context.Background()
	records, err := queryAudit(ctx)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	out := cmd.OutOrStdout()
	if auditFlags.file != "" {
		f, err := os.Create(auditFlags.file)
		if err != nil {
			return cli.NewCommandError("audit export", err)
		}
		defer f.Close()
		out = f
	}

	if err := exporter.Export(ctx, records, out); err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if auditFlags.file != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records to %s\n", len(records), auditFlags.file)
	}
	return nil
}

func verifyAudit(cmd *cobra.Command, args []string) error {
	records, err := queryAudit(context.Background())
	if err != nil {
		return cli.NewCommandError("audit verify", err)
	}

	var mismatched auditTable
	for _, r := range records {
		if !recorder.Verify(r.Before, r.After, r.ContentHash) {
			mismatched = append(mismatched, r)
		}
	}

	if len(mismatched) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d records verified\n", len(records))
		return nil
	}
	if err := writeResult(cmd, mismatched); err != nil {
		return err
	}
	return cli.Failuref("%d of %d records failed verification", len(mismatched), len(records))
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := app.OpenAuditStorage(&loaded.Audit)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer store.Close()

	r := loaded.Audit.Retention
	pruner := retention.NewPruner(store, &retention.Config{
		RetentionDays:       r.RetentionDays,
		ArchiveBeforeDelete: r.ArchiveBeforeDelete,
		ArchivePath:         r.ArchivePath,
		MaxRecords:          r.MaxRecords,
	})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d audit records\n", deleted)
	return nil
}
