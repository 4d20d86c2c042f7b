package store

import (
	"path/filepath"
	"testing"

	"edlog/internal/event"
)

// createTestStore creates a temp-file store with a deterministic clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	// Deterministic wall clock for updated_at / end_time assertions.
	var now int64 = 1000
	s.nowMs = func() int64 {
		now += 10
		return now
	}
	return s
}

// makeEdit creates an EDIT event inserting text at a 1-based position.
func makeEdit(ts int64, line, col int, text string) event.Event {
	return event.Event{
		Timestamp: ts,
		Type:      event.TypeEdit,
		Changes: []event.Change{{
			Range:        event.Range{StartLine: line, StartCol: col, EndLine: line, EndCol: col},
			InsertedText: text,
		}},
	}
}

// makeLineUpdate creates a LINE_UPDATE event.
func makeLineUpdate(ts int64, line int, content string) event.Event {
	return event.Event{
		Timestamp: ts,
		Type:      event.TypeLineUpdate,
		Line:      line,
		Content:   content,
	}
}
