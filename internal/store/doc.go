// Package store provides durable storage for edlog session logs.
//
// Storage model:
//   - sessions: one row per recording session, identity never reused
//   - events: the flat append-only event log (EDIT, WORD_COMPLETE, ...)
//   - line_history: per-line append-only content and metrics versions
//
// Every append runs in a single transaction that also claims a contiguous
// block of per-session seq numbers, so concurrent flushes for the same
// session can race without losing either batch and arrival order survives
// storage round-trips.
//
// Uses SQLite with WAL mode for concurrent read access. The connection pool
// is limited to a single writer, matching SQLite's locking model.
package store
