package store

import (
	"encoding/json"
	"fmt"

	"edlog/internal/event"
)

// eventPayload is the JSON document stored in the events.payload column.
// Timestamp, seq, and type live in their own columns for ordering and
// partitioning; the payload carries everything else.
type eventPayload struct {
	Changes []event.Change   `json:"changes,omitempty"`
	Line    int              `json:"line,omitempty"`
	Content string           `json:"content,omitempty"`
	Word    string           `json:"word,omitempty"`
	Run     *event.RunResult `json:"run,omitempty"`
}

// marshalEventPayload serializes the non-column fields of an event.
func marshalEventPayload(ev event.Event) (string, error) {
	p := eventPayload{
		Changes: ev.Changes,
		Line:    ev.Line,
		Content: ev.Content,
		Word:    ev.Word,
		Run:     ev.Run,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	return string(data), nil
}

// unmarshalEventPayload fills the payload fields of an event whose column
// fields (timestamp, seq, type) are already set.
func unmarshalEventPayload(data string, ev *event.Event) error {
	var p eventPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}
	ev.Changes = p.Changes
	ev.Line = p.Line
	ev.Content = p.Content
	ev.Word = p.Word
	ev.Run = p.Run
	return nil
}

// marshalMetrics serializes a metrics snapshot for the line_history table.
func marshalMetrics(m *event.LineMetrics) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal line metrics: %w", err)
	}
	return string(data), nil
}

// unmarshalMetrics deserializes a metrics snapshot.
func unmarshalMetrics(data string) (*event.LineMetrics, error) {
	var m event.LineMetrics
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal line metrics: %w", err)
	}
	return &m, nil
}
