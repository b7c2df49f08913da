// Package sqlite is the persistent storage backend.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. One database file holds:
//
//   - DocumentIndex: documents keyed by (source, id) with an FTS5 index for bm25 search
//   - SyncStateStore: refresh watermarks per source
//   - SchedulerStore: background refresh timing
//   - InteractionStore: the interaction log, topics and feedback
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.supportbot/index.db
//
// # Concurrency
//
// The database runs in WAL mode so queries read while a refresh writes.
// Each document is written by a single statement and is replaced atomically.
package sqlite
