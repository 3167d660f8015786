// Package audit records who changed which rule or group, when and why.
//
// The rule store reports every mutation (create, update, delete, rollback,
// activate, deactivate, clone, group_create, group_modify) to a Sink as an
// Entry holding the entity state before and after the change. The
// recorder subpackage implements Sink: it assigns a UUID and timestamp,
// encodes the snapshots as JSON, hashes them, and writes the resulting
// Record to a Storage backend from a background worker.
//
// Subpackages:
//
//   - storage: in-memory and SQLite Storage implementations
//   - recorder: asynchronous Sink backed by a Storage
//   - retention: age and count based pruning scheduled with cron
//   - export: JSON and CSV exporters for audit records
//
// Example:
//
//	st, err := storage.NewSQLiteStorage(storage.DefaultSQLiteConfig("audit.db"))
//	if err != nil {
//	    return err
//	}
//	rec := recorder.New(st, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//
//	ruleStore := store.New("tenant-a", repo, rec, logger)
package audit
