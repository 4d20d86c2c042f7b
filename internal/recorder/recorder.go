// Package recorder captures normalized edit events into a per-session queue
// and decides when to flush them to durable storage.
//
// Flush triggers, any of which drains and posts the whole batch:
//   - idle: no new change for IdleFlushDelay since the last one
//   - size: queue length reaches MaxQueueLen
//   - focus loss: the editor lost focus
//   - lifecycle: tab hidden, page unloading, or explicit session stop
//
// Failure policy: a failed flush re-queues its batch only if the session id
// has not changed since the flush began; otherwise the batch is dropped. A
// slow response from a stale session must never corrupt a newly started one.
// Telemetry loss is tolerated; nothing here surfaces to the user.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"edlog/internal/event"
	"edlog/internal/timer"
)

const (
	// IdleFlushDelay is the restart-on-activity idle timer.
	IdleFlushDelay = 200 * time.Millisecond
	// MaxQueueLen triggers an immediate size flush.
	MaxQueueLen = 25
)

// Appender delivers event batches to durable storage.
type Appender interface {
	Append(ctx context.Context, sessionID string, events []event.Event) error
}

// sessionState is the per-session mutable state, rebound wholesale on session
// switch so no stale queue or timestamp survives into a new session.
type sessionState struct {
	sessionID string
	startMs   int64
	queue     []event.Event
}

// Recorder owns the pending-event queue for the current session. All shared
// state is guarded by one mutex; flush network calls run outside it.
type Recorder struct {
	clock    timer.Clock
	sched    timer.Scheduler
	appender Appender

	mu    sync.Mutex
	state *sessionState
	armed bool
}

// New creates a recorder. It records nothing until Begin binds a session.
func New(clock timer.Clock, sched timer.Scheduler, appender Appender) *Recorder {
	return &Recorder{
		clock:    clock,
		sched:    sched,
		appender: appender,
		armed:    true,
	}
}

// Begin binds the recorder to a new session and resets all per-session state.
// Any previous session must already have been flushed via Switch or Stop.
func (r *Recorder) Begin(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = &sessionState{
		sessionID: sessionID,
		startMs:   r.clock.NowMs(),
	}
	slog.Debug("recorder bound", "session", sessionID)
}

// SessionID returns the currently bound session id, empty if none.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return ""
	}
	return r.state.sessionID
}

// Armed reports whether the recorder is accepting changes.
func (r *Recorder) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Disarm suspends recording. Replay must disarm the recorder before rebuilding
// editor state so synthetic edits cannot feed back into a new event stream.
func (r *Recorder) Disarm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed {
		r.armed = false
		slog.Debug("recorder disarmed")
	}
}

// Arm resumes recording after a Disarm.
func (r *Recorder) Arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		r.armed = true
		slog.Debug("recorder armed")
	}
}

// RecordChange appends a normalized EDIT event to the queue bound to the
// current session. No-ops while disarmed or with no session bound.
//
// Events arrive without timestamps; the recorder stamps them relative to
// session start. A full queue flushes immediately, otherwise the idle timer
// restarts.
func (r *Recorder) RecordChange(changes []event.Change) {
	r.mu.Lock()

	if !r.armed || r.state == nil {
		r.mu.Unlock()
		return
	}

	ev := event.Event{
		Timestamp: r.clock.NowMs() - r.state.startMs,
		Type:      event.TypeEdit,
		Changes:   changes,
	}
	r.state.queue = append(r.state.queue, ev)
	full := len(r.state.queue) >= MaxQueueLen
	r.mu.Unlock()

	if full {
		go r.flush("size")
		return
	}
	r.sched.Schedule(timer.IdleFlush, IdleFlushDelay, func() { r.flush("idle") })
}

// RecordEvent appends an already-stamped non-edit event (WORD_COMPLETE,
// LINE_COMPLETE, CODE_RUN, LINE_METRICS) to the queue. Used by the metrics
// aggregator and run integration; subject to the same armed/session gating.
func (r *Recorder) RecordEvent(ev event.Event) {
	r.mu.Lock()

	if !r.armed || r.state == nil {
		r.mu.Unlock()
		return
	}
	r.state.queue = append(r.state.queue, ev)
	full := len(r.state.queue) >= MaxQueueLen
	r.mu.Unlock()

	if full {
		go r.flush("size")
		return
	}
	r.sched.Schedule(timer.IdleFlush, IdleFlushDelay, func() { r.flush("idle") })
}

// OnFocusLost flushes the queue because the editor lost focus.
func (r *Recorder) OnFocusLost() {
	go r.flush("focus-loss")
}

// OnLifecycleEvent flushes best-effort for tab-hidden or page-unload signals.
// Fire-and-forget: errors are swallowed by the standard failure policy.
func (r *Recorder) OnLifecycleEvent(reason string) {
	go r.flush("lifecycle:" + reason)
}

// Switch flushes the outgoing session synchronously, then rebinds all state
// to the new session. The outgoing flush is best-effort: on failure its batch
// is dropped, because the state reset below makes the session id stale.
func (r *Recorder) Switch(newSessionID string) {
	r.flush("session-switch")

	r.mu.Lock()
	r.state = &sessionState{
		sessionID: newSessionID,
		startMs:   r.clock.NowMs(),
	}
	r.mu.Unlock()

	r.sched.Cancel(timer.IdleFlush)
	slog.Debug("recorder switched", "session", newSessionID)
}

// Stop flushes synchronously and unbinds the session. Further changes no-op
// until the next Begin.
func (r *Recorder) Stop() {
	r.flush("stop")

	r.mu.Lock()
	r.state = nil
	r.mu.Unlock()

	r.sched.Cancel(timer.IdleFlush)
}

// Flush forces a synchronous flush. Exposed for wiring that needs ordering
// (session switch performs one before rebinding).
func (r *Recorder) Flush() {
	r.flush("explicit")
}

// QueueLen returns the current pending queue length. Exposed for tests.
func (r *Recorder) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return 0
	}
	return len(r.state.queue)
}

// flush drains the queue and posts the batch. On failure the batch is
// re-queued at the front only if the session is unchanged, preserving order
// for the next attempt; otherwise it is dropped silently.
func (r *Recorder) flush(reason string) {
	r.mu.Lock()
	if r.state == nil || len(r.state.queue) == 0 {
		r.mu.Unlock()
		return
	}
	sessionID := r.state.sessionID
	batch := r.state.queue
	r.state.queue = nil
	r.mu.Unlock()

	r.sched.Cancel(timer.IdleFlush)

	err := r.appender.Append(context.Background(), sessionID, batch)
	if err == nil {
		slog.Debug("flush ok", "session", sessionID, "events", len(batch), "reason", reason)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check the session at completion time: a switch may have happened
	// while the POST was in flight.
	if r.state != nil && r.state.sessionID == sessionID {
		r.state.queue = append(batch, r.state.queue...)
		slog.Warn("flush failed, batch re-queued",
			"session", sessionID,
			"events", len(batch),
			"reason", reason,
			"error", err,
		)
		return
	}

	slog.Warn("flush failed for stale session, batch dropped",
		"session", sessionID,
		"events", len(batch),
		"reason", reason,
		"error", err,
	)
}
