// Package metrics derives per-line engagement statistics from the raw change
// stream: idle time, churn, pacing outliers, keystroke rate.
//
// The aggregator keeps rolling windows of churn, undo/redo, and keystroke
// samples keyed by (timestamp, line). One line is "active" at a time; when an
// edit lands on a different line the previous line is finalized, which emits
// exactly one LINE_METRICS snapshot and resets that line's idle accumulator.
// Snapshots are never revised after emission.
//
// All timestamps are milliseconds since session start, supplied by the
// caller, so the aggregator is fully deterministic under test.
package metrics
