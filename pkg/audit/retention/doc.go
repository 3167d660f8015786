// Package retention enforces audit retention limits.
//
// A Pruner deletes audit records older than RetentionDays and, when
// MaxRecords is set, the oldest records beyond that count. Records can be
// archived to a JSON file before deletion. A Scheduler runs the pruner on
// a standard five-field cron schedule:
//
//	pruner := retention.NewPruner(storage, &retention.Config{
//	    RetentionDays: 365,
//	    PruneSchedule: "0 3 * * *",
//	})
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
package retention
