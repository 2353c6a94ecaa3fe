// Package sqlite provides the SQLite implementation of driven.EntityStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Foreign keys tie cves and threat_actors to documents, and a CHECK constraint
// rejects malformed CVE identifiers at write time.
//
// # Data Location
//
// By default, the database is stored at ~/.threatdocs/data/threatdocs.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Each ingestion batch is written in a single transaction.
package sqlite
