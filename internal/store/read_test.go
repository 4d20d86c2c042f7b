package store

import (
	"context"
	"errors"
	"testing"

	"edlog/internal/event"
)

func TestGetSession_UnknownSession(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetSession(context.Background(), "no-such-session")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGetSession_RoundTripsPayloads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, _, err := s.StartSession(ctx, "python", "start")
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}

	batch := []event.Event{
		{
			Timestamp: 10,
			Type:      event.TypeEdit,
			Changes: []event.Change{{
				Range:          event.Range{StartLine: 1, StartCol: 1, EndLine: 2, EndCol: 3},
				InsertedText:   "multi\nline",
				ReplacedLength: 4,
			}},
		},
		{
			Timestamp: 20,
			Type:      event.TypeCodeRun,
			Run:       &event.RunResult{Output: "hello\n", Error: "warning"},
		},
	}
	if err := s.AppendEvents(ctx, id, batch); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}

	if sess.Language != "python" || sess.InitialCode != "start" {
		t.Errorf("session identity mismatch: %+v", sess)
	}
	if sess.EndTime != nil {
		t.Error("end time should be unset before stop")
	}

	edit := sess.Events[0]
	if len(edit.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(edit.Changes))
	}
	c := edit.Changes[0]
	if c.InsertedText != "multi\nline" || c.ReplacedLength != 4 {
		t.Errorf("change payload mismatch: %+v", c)
	}
	if c.Range.EndLine != 2 || c.Range.EndCol != 3 {
		t.Errorf("range payload mismatch: %+v", c.Range)
	}

	run := sess.Events[1]
	if run.Run == nil || run.Run.Output != "hello\n" || run.Run.Error != "warning" {
		t.Errorf("run payload mismatch: %+v", run.Run)
	}
}

func TestGetSession_EndTimeAfterStop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, _, err := s.StartSession(ctx, "go", "")
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}
	endTime, err := s.StopSession(ctx, id)
	if err != nil {
		t.Fatalf("StopSession() failed: %v", err)
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if sess.EndTime == nil || *sess.EndTime != endTime {
		t.Errorf("expected end time %d, got %v", endTime, sess.EndTime)
	}
}

func TestListSessions_SortedByRecency(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, _, err := s.StartSession(ctx, "python", "")
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}
	second, _, err := s.StartSession(ctx, "go", "")
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}

	// Touch the first session so it becomes the most recently updated.
	if err := s.AppendEvents(ctx, first, []event.Event{makeEdit(10, 1, 1, "x")}); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}

	summaries, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].SessionID != first {
		t.Errorf("expected most recently updated session first, got %s", summaries[0].SessionID)
	}
	if summaries[1].SessionID != second {
		t.Errorf("expected older session second, got %s", summaries[1].SessionID)
	}
}

func TestListSessions_RespectsLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := s.StartSession(ctx, "python", ""); err != nil {
			t.Fatalf("StartSession() failed: %v", err)
		}
	}

	summaries, err := s.ListSessions(ctx, 3)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("expected 3 summaries, got %d", len(summaries))
	}

	// Zero falls back to the default limit rather than returning nothing.
	summaries, err = s.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(summaries) != 5 {
		t.Errorf("expected all 5 summaries under default limit, got %d", len(summaries))
	}
}

func TestEventCount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, _, err := s.StartSession(ctx, "python", "")
	if err != nil {
		t.Fatalf("StartSession() failed: %v", err)
	}

	count, err := s.EventCount(ctx, id)
	if err != nil {
		t.Fatalf("EventCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 events in fresh session, got %d", count)
	}

	// Line-keyed entries do not count toward the flat log.
	batch := []event.Event{
		makeEdit(10, 1, 1, "a"),
		makeLineUpdate(20, 1, "a"),
	}
	if err := s.AppendEvents(ctx, id, batch); err != nil {
		t.Fatalf("AppendEvents() failed: %v", err)
	}

	count, err = s.EventCount(ctx, id)
	if err != nil {
		t.Fatalf("EventCount() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 flat event, got %d", count)
	}
}
