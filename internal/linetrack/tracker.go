// Package linetrack maintains per-line content versions on the client side.
//
// On every change notification the tracker reads the current text of each
// line the edit touched and buffers a {timestamp, content} version only when
// the content actually differs from the last buffered value for that line.
// Redundant notifications therefore never grow history. The buffer flushes on
// its own debounce, independent of the event recorder's flush policy.
package linetrack

import (
	"strings"
	"time"

	"edlog/internal/editor"
	"edlog/internal/event"
	"edlog/internal/timer"
)

// FlushDebounce is how long the tracker waits after the last touched line
// before handing the buffer to the sink.
const FlushDebounce = 750 * time.Millisecond

// SinkFunc receives a drained buffer of LINE_UPDATE events. Delivery is
// best-effort; the tracker never retries.
type SinkFunc func([]event.Event)

// Tracker buffers per-line content versions. Not safe for concurrent use;
// it lives on the client's cooperative loop.
type Tracker struct {
	sched timer.Scheduler
	sink  SinkFunc

	pending  []event.Event
	lastSeen map[int]string
}

// New creates a tracker that flushes through sink on a debounce driven by
// sched.
func New(sched timer.Scheduler, sink SinkFunc) *Tracker {
	return &Tracker{
		sched:    sched,
		sink:     sink,
		lastSeen: make(map[int]string),
	}
}

// Bind seeds the tracker's last-seen state from a document's current lines.
// Called at session start so unchanged initial lines never produce versions.
func (t *Tracker) Bind(doc *editor.Document) {
	for n := 1; n <= doc.LineCount(); n++ {
		line, _ := doc.Line(n)
		t.lastSeen[n] = line
	}
}

// Observe processes one change notification after the edit has been applied
// to the document. ts is milliseconds since session start.
func (t *Tracker) Observe(ts int64, ev event.Event, doc *editor.Document) {
	if ev.Type != event.TypeEdit {
		return
	}

	for _, c := range ev.Changes {
		first, last := touchedLines(c, doc.LineCount())
		for n := first; n <= last; n++ {
			content, ok := doc.Line(n)
			if !ok {
				continue
			}
			prev, seen := t.lastSeen[n]
			if seen && prev == content {
				continue
			}
			t.lastSeen[n] = content
			t.pending = append(t.pending, event.Event{
				Timestamp: ts,
				Type:      event.TypeLineUpdate,
				Line:      n,
				Content:   content,
			})
		}
	}

	if len(t.pending) > 0 {
		t.sched.Schedule(timer.LineFlush, FlushDebounce, t.Flush)
	}
}

// Flush drains the pending buffer to the sink immediately. Safe to call with
// an empty buffer.
func (t *Tracker) Flush() {
	if len(t.pending) == 0 {
		return
	}
	batch := t.pending
	t.pending = nil
	t.sched.Cancel(timer.LineFlush)
	t.sink(batch)
}

// Reset clears all buffered and last-seen state. Called on session switch so
// a new session starts from a clean slate.
func (t *Tracker) Reset() {
	t.pending = nil
	t.lastSeen = make(map[int]string)
	t.sched.Cancel(timer.LineFlush)
}

// PendingCount returns the number of buffered versions. Exposed for tests.
func (t *Tracker) PendingCount() int {
	return len(t.pending)
}

// touchedLines computes the 1-based line span an applied change can have
// affected: from the range's first line through the last line the inserted
// text now occupies, clamped to the document.
func touchedLines(c event.Change, lineCount int) (first, last int) {
	first = c.Range.StartLine
	if first < 1 {
		first = 1
	}
	last = c.Range.StartLine + strings.Count(c.InsertedText, "\n")
	if c.Range.EndLine > last {
		last = c.Range.EndLine
	}
	if last > lineCount {
		last = lineCount
	}
	return first, last
}
