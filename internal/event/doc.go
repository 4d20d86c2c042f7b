// Package event provides the canonical event types for edlog sessions.
//
// This package contains type definitions and ordering helpers only. All other
// internal packages import event; event imports nothing internal. This keeps
// the event model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Timestamps are milliseconds since session start (int64), never wall clocks
//   - Seq is the arrival index assigned on append; it is the only tie-break
//     for events with equal timestamps and is never renegotiated
//   - All JSON tags use camelCase to match the wire format of the session API
package event
