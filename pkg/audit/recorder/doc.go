// Package recorder turns audit entries into persisted audit records.
//
// Recorder implements audit.Sink. Record converts an entry into an
// audit.Record (uuid id, timestamp, JSON snapshots and a SHA-256 content
// hash) and enqueues it on a buffered channel. A single worker goroutine
// writes queued records to the configured audit.Storage, so callers never
// wait on storage I/O. Close stops accepting entries and drains the queue
// before returning.
//
// Example:
//
//	rec := recorder.NewRecorder(storage.NewMemoryStorage(), nil)
//	defer rec.Close()
//
//	st := store.New("tenant-a", repo, rec, logger)
package recorder
