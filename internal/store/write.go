package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"edlog/internal/event"
)

// StartSession creates a new session and seeds its line history with one
// content entry per initial line at timestamp 0.
//
// Session identity is a fresh UUID and is never reused.
func (s *Store) StartSession(ctx context.Context, language, initialCode string) (sessionID string, startTime int64, err error) {
	sessionID = uuid.NewString()
	startTime = s.nowMs()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("start session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, language, initial_code, start_time, updated_at, next_seq)
		VALUES (?, ?, ?, ?, ?, 1)
	`, sessionID, language, initialCode, startTime, startTime)
	if err != nil {
		return "", 0, fmt.Errorf("start session: insert: %w", err)
	}

	// Seed line history: the content of every initial line at t=0.
	seq := int64(1)
	for i, line := range strings.Split(initialCode, "\n") {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO line_history (session_id, line_no, seq, timestamp, content)
			VALUES (?, ?, ?, 0, ?)
		`, sessionID, i+1, seq, line)
		if err != nil {
			return "", 0, fmt.Errorf("start session: seed line %d: %w", i+1, err)
		}
		seq++
	}

	_, err = tx.ExecContext(ctx, `UPDATE sessions SET next_seq = ? WHERE id = ?`, seq, sessionID)
	if err != nil {
		return "", 0, fmt.Errorf("start session: update seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("start session: commit: %w", err)
	}

	return sessionID, startTime, nil
}

// AppendEvents appends a batch to a session's history in one transaction.
//
// The batch is partitioned: LINE_UPDATE and LINE_METRICS entries go to the
// per-line history, everything else to the flat event log. Each event claims
// the next per-session seq inside the transaction, so concurrent flushes for
// the same session serialize on the session row and neither batch is lost.
//
// Appending to a stopped session is accepted: a flush already in flight when
// the tab unloads may legitimately land after stop.
func (s *Store) AppendEvents(ctx context.Context, sessionID string, events []event.Event) error {
	if len(events) == 0 {
		return ErrEmptyBatch
	}
	for i, ev := range events {
		if !event.ValidTypes[ev.Type] {
			return fmt.Errorf("append events: event %d has unknown type %q", i, ev.Type)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT next_seq FROM sessions WHERE id = ?`, sessionID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("append events: %w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("append events: read seq: %w", err)
	}

	for i, ev := range events {
		if ev.Type.LineKeyed() {
			err = s.insertLineEntry(ctx, tx, sessionID, seq, ev)
		} else {
			err = s.insertEvent(ctx, tx, sessionID, seq, ev)
		}
		if err != nil {
			return fmt.Errorf("append events: event %d: %w", i, err)
		}
		seq++
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET next_seq = ?, updated_at = ? WHERE id = ?
	`, seq, s.nowMs(), sessionID)
	if err != nil {
		return fmt.Errorf("append events: update seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}

	return nil
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, sessionID string, seq int64, ev event.Event) error {
	payload, err := marshalEventPayload(ev)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (session_id, seq, timestamp, type, payload)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, seq, ev.Timestamp, string(ev.Type), payload)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) insertLineEntry(ctx context.Context, tx *sql.Tx, sessionID string, seq int64, ev event.Event) error {
	var content sql.NullString
	var metrics sql.NullString

	switch ev.Type {
	case event.TypeLineUpdate:
		content = sql.NullString{String: ev.Content, Valid: true}
	case event.TypeLineMetrics:
		if ev.Metrics == nil {
			return fmt.Errorf("line metrics event without metrics payload")
		}
		m, err := marshalMetrics(ev.Metrics)
		if err != nil {
			return err
		}
		metrics = sql.NullString{String: m, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO line_history (session_id, line_no, seq, timestamp, content, metrics)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, ev.Line, seq, ev.Timestamp, content, metrics)
	if err != nil {
		return fmt.Errorf("insert line entry: %w", err)
	}
	return nil
}

// StopSession sets the session's end time. The end time is set at most once:
// stopping an already stopped session returns the original end time. Later
// appends are still accepted (best-effort semantics).
func (s *Store) StopSession(ctx context.Context, sessionID string) (endTime int64, err error) {
	now := s.nowMs()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET end_time = COALESCE(end_time, ?), updated_at = ?
		WHERE id = ?
	`, now, now, sessionID)
	if err != nil {
		return 0, fmt.Errorf("stop session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stop session: rows affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("stop session: %w: %s", ErrSessionNotFound, sessionID)
	}

	err = s.db.QueryRowContext(ctx, `SELECT end_time FROM sessions WHERE id = ?`, sessionID).Scan(&endTime)
	if err != nil {
		return 0, fmt.Errorf("stop session: read end time: %w", err)
	}

	return endTime, nil
}

// CleanupEmpty removes sessions that never recorded an event. The seeded line
// history does not count as activity. Returns the number of removed sessions.
func (s *Store) CleanupEmpty(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE NOT EXISTS (SELECT 1 FROM events e WHERE e.session_id = sessions.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("cleanup empty: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup empty: rows affected: %w", err)
	}

	return deleted, nil
}
