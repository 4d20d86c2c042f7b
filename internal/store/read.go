package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"edlog/internal/event"
)

// DefaultListLimit bounds session listings when the caller passes no limit.
const DefaultListLimit = 20

// GetSession returns the full session document: identity, the flat event log
// ordered by (timestamp, seq), and the per-line history.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*event.Session, error) {
	sess := &event.Session{SessionID: sessionID}

	var endTime sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT language, initial_code, start_time, end_time
		FROM sessions WHERE id = ?
	`, sessionID).Scan(&sess.Language, &sess.InitialCode, &sess.StartTime, &endTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if endTime.Valid {
		sess.EndTime = &endTime.Int64
	}

	if sess.Events, err = s.readEvents(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.LineHistory, err = s.readLineHistory(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return sess, nil
}

func (s *Store) readEvents(ctx context.Context, sessionID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, timestamp, type, payload
		FROM events
		WHERE session_id = ?
		ORDER BY timestamp ASC, seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		var typ, payload string
		if err := rows.Scan(&ev.Seq, &ev.Timestamp, &typ, &payload); err != nil {
			return nil, fmt.Errorf("read events: scan: %w", err)
		}
		ev.Type = event.Type(typ)
		if err := unmarshalEventPayload(payload, &ev); err != nil {
			return nil, fmt.Errorf("read events: seq %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	return events, nil
}

func (s *Store) readLineHistory(ctx context.Context, sessionID string) (map[int][]event.LineVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line_no, seq, timestamp, content, metrics
		FROM line_history
		WHERE session_id = ?
		ORDER BY line_no ASC, timestamp ASC, seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read line history: %w", err)
	}
	defer rows.Close()

	history := make(map[int][]event.LineVersion)
	for rows.Next() {
		var lineNo int
		var lv event.LineVersion
		var content, metrics sql.NullString
		if err := rows.Scan(&lineNo, &lv.Seq, &lv.Timestamp, &content, &metrics); err != nil {
			return nil, fmt.Errorf("read line history: scan: %w", err)
		}
		if content.Valid {
			c := content.String
			lv.Content = &c
		}
		if metrics.Valid {
			m, err := unmarshalMetrics(metrics.String)
			if err != nil {
				return nil, fmt.Errorf("read line history: line %d seq %d: %w", lineNo, lv.Seq, err)
			}
			lv.Metrics = m
		}
		history[lineNo] = append(history[lineNo], lv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read line history: %w", err)
	}

	return history, nil
}

// ListSessions returns session summaries sorted by recency (most recently
// updated first). A limit of zero or less falls back to DefaultListLimit.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]event.Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, language, start_time, end_time, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []event.Summary
	for rows.Next() {
		var sum event.Summary
		var endTime sql.NullInt64
		if err := rows.Scan(&sum.SessionID, &sum.Language, &sum.StartTime, &endTime, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list sessions: scan: %w", err)
		}
		if endTime.Valid {
			sum.EndTime = &endTime.Int64
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return summaries, nil
}

// EventCount returns the number of flat log events for a session.
func (s *Store) EventCount(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE session_id = ?
	`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("event count: %w", err)
	}
	return count, nil
}
