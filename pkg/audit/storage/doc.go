// Package storage provides backends for audit records.
//
//   - SQLite: embedded database, the default backend
//   - Memory: in-memory storage for tests and dry runs
//
// The SQLite backend runs on the pure-Go modernc.org/sqlite driver ("sqlite")
// by default. Set SQLiteConfig.Driver to "sqlite3" to use the cgo
// github.com/mattn/go-sqlite3 driver instead. Both use WAL mode, a busy
// timeout and indexes on the queried columns. Times are stored as Unix
// nanoseconds so both drivers round-trip them identically.
package storage
