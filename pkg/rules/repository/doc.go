// Package repository provides persistence backends for the rule store.
//
// All backends implement store.Repository:
//
//   - MemoryRepository keeps everything in process memory. It is the
//     default for tests and single-process embedding.
//   - SQLiteRepository stores rules, versions and groups in a SQLite
//     file. Either the cgo driver (github.com/mattn/go-sqlite3, driver
//     name "sqlite3") or the pure Go driver (modernc.org/sqlite, driver
//     name "sqlite") can be selected.
//   - PostgresRepository stores the same tables in PostgreSQL through
//     github.com/lib/pq. Its schema is managed with golang-migrate from
//     migrations embedded in the binary; see Migrator.
//
// Rules, versions and groups are stored as JSON documents next to the
// columns used for filtering (tenant, category, status).
package repository
