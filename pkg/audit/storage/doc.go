// Package storage provides audit.Storage backends.
//
// MemoryStorage keeps records in a map and is meant for tests and
// single-process tools. SQLiteStorage persists records in a SQLite
// database using either the CGO driver (github.com/mattn/go-sqlite3) or
// the pure Go driver (modernc.org/sqlite).
//
// Both backends apply the same query semantics: filters from audit.Query
// are combined with AND, results are ordered by timestamp (newest first by
// default, ties broken by id) and paginated with Limit and Offset.
package storage
