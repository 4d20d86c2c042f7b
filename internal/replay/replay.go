// Package replay reconstructs editor state from a session's event log with
// controllable timing.
//
// # Determinism
//
// Replay is a pure function of the initial code and an event-log prefix. The
// engine sorts the log once by (timestamp, seq) - stable, so equal keys keep
// arrival order - and only EDIT events mutate the editor. Seeking to any
// percentage rebuilds from the initial code by re-applying the prefix, which
// yields the same bytes no matter how playback got there.
//
// # Timing
//
// Walking the sorted list, the delay before the next event is the original
// gap when that gap is a deliberate pause (>= LongBreakThresholdMs, scaled by
// the speed multiplier), otherwise a fixed short step. Normal typing stays
// watchable; long pauses stay visible.
//
// # Recorder exclusion
//
// Replay and live recording are mutually exclusive on one editor. Loading a
// session disarms the recorder; Close re-arms it. Every programmatic rebuild
// therefore cannot feed synthetic edits back into a new event stream.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edlog/internal/editor"
	"edlog/internal/event"
	"edlog/internal/timer"
)

// State is the replay engine's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateSeeking   State = "seeking"
	StateCompleted State = "completed"
)

const (
	// LongBreakThresholdMs separates deliberate pauses from typing rhythm.
	LongBreakThresholdMs = 800
	// ShortStepMs is the fixed delay between events inside normal typing.
	ShortStepMs = 60
)

// Source fetches session documents for replay.
type Source interface {
	GetSession(ctx context.Context, sessionID string) (*event.Session, error)
}

// Armer is the recorder surface replay needs: disarm while replay owns the
// editor, re-arm when it lets go.
type Armer interface {
	Arm()
	Disarm()
}

// Engine replays one loaded session. Safe for concurrent use; playback timer
// callbacks and control calls share one mutex.
type Engine struct {
	sched timer.Scheduler
	doc   *editor.Document
	rec   Armer // optional

	// OnEvent, when set, observes every event reaching its playback position,
	// including non-edit types that do not mutate the editor.
	OnEvent func(event.Event)

	mu          sync.Mutex
	state       State
	events      []event.Event
	index       int
	speed       float64
	sessionID   string
	initialCode string
}

// New creates an engine rendering into doc. rec may be nil when no live
// recorder shares the editor.
func New(sched timer.Scheduler, doc *editor.Document, rec Armer) *Engine {
	return &Engine{
		sched: sched,
		doc:   doc,
		rec:   rec,
		state: StateIdle,
		speed: 1.0,
	}
}

// Load fetches a session, sorts its event log once, and resets the editor to
// the session's initial code. The recorder is disarmed for the whole replay
// lifetime.
func (e *Engine) Load(ctx context.Context, src Source, sessionID string) error {
	sess, err := src.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec != nil {
		e.rec.Disarm()
	}

	e.sessionID = sess.SessionID
	e.initialCode = sess.InitialCode
	e.events = event.Sorted(sess.Events)
	e.index = 0
	e.state = StateIdle
	e.doc.Reset(e.initialCode)

	slog.Info("replay loaded",
		"session", e.sessionID,
		"events", len(e.events),
	)
	return nil
}

// Play starts or resumes playback from the current index. No-op when already
// playing or completed.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePlaying || e.state == StateCompleted {
		return
	}
	e.state = StatePlaying
	e.scheduleStepLocked(0)
}

// Pause freezes playback at the current index. Resuming restarts from that
// exact index; no events are skipped or replayed twice.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return
	}
	e.sched.Cancel(timer.PlaybackStep)
	e.state = StatePaused
}

// Resume is Play from the frozen index.
func (e *Engine) Resume() {
	e.Play()
}

// Seek jumps to a percentage of the event log. The target index is
// floor(percent/100 x eventCount); the editor is rebuilt from the initial
// code by re-applying every EDIT event before that index. Playback is left
// paused at the target.
func (e *Engine) Seek(percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.events) == 0 && e.state == StateIdle && e.sessionID == "" {
		return // nothing loaded
	}

	e.sched.Cancel(timer.PlaybackStep)
	e.state = StateSeeking

	target := int(percent / 100 * float64(len(e.events)))
	e.rebuildLocked(target)

	e.index = target
	e.state = StatePaused
}

// Rerun restarts playback from the beginning: Seek(0) immediately followed
// by Play.
func (e *Engine) Rerun() {
	e.Seek(0)
	e.Play()
}

// Close stops all playback timers and re-arms the recorder. The engine can be
// loaded again afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sched.Cancel(timer.PlaybackStep)
	e.state = StateIdle
	if e.rec != nil {
		e.rec.Arm()
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns playback progress in percent.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateCompleted {
		return 100
	}
	if len(e.events) == 0 {
		return 0
	}
	return float64(e.index) / float64(len(e.events)) * 100
}

// SetSpeed sets the playback speed multiplier for preserved pauses.
// Non-positive values reset to real time.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if speed <= 0 {
		speed = 1.0
	}
	e.speed = speed
}

// step applies the event at the current index and schedules the next one.
// Runs on the scheduler; a pause racing in simply wins via the state check.
func (e *Engine) step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return
	}
	if e.index >= len(e.events) {
		e.completeLocked()
		return
	}

	ev := e.events[e.index]
	e.applyLocked(ev)
	e.index++

	if e.index >= len(e.events) {
		e.completeLocked()
		return
	}

	gap := e.events[e.index].Timestamp - ev.Timestamp
	e.scheduleStepLocked(e.delayFor(gap))
}

// delayFor converts an original inter-event gap into a playback delay:
// deliberate pauses are preserved (scaled by speed), typing rhythm collapses
// to the fixed short step.
func (e *Engine) delayFor(gapMs int64) time.Duration {
	if gapMs >= LongBreakThresholdMs {
		return time.Duration(float64(gapMs)/e.speed) * time.Millisecond
	}
	return ShortStepMs * time.Millisecond
}

func (e *Engine) scheduleStepLocked(delay time.Duration) {
	e.sched.Schedule(timer.PlaybackStep, delay, e.step)
}

// applyLocked applies one event to the editor. Only EDIT events mutate state;
// a malformed event is logged and skipped so the timer keeps advancing.
func (e *Engine) applyLocked(ev event.Event) {
	if ev.Type == event.TypeEdit {
		if err := e.doc.ApplyEvent(ev); err != nil {
			slog.Warn("replay apply failed, event skipped",
				"session", e.sessionID,
				"seq", ev.Seq,
				"timestamp", ev.Timestamp,
				"error", err,
			)
		}
	}
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// rebuildLocked resets the editor to the initial code and deterministically
// re-applies every EDIT event before the target index.
func (e *Engine) rebuildLocked(target int) {
	e.doc.Reset(e.initialCode)
	for i := 0; i < target && i < len(e.events); i++ {
		ev := e.events[i]
		if ev.Type != event.TypeEdit {
			continue
		}
		if err := e.doc.ApplyEvent(ev); err != nil {
			slog.Warn("seek rebuild apply failed, event skipped",
				"session", e.sessionID,
				"index", i,
				"error", err,
			)
		}
	}
}

// completeLocked finishes playback: no further timers are scheduled.
func (e *Engine) completeLocked() {
	e.sched.Cancel(timer.PlaybackStep)
	e.state = StateCompleted
	slog.Info("replay completed", "session", e.sessionID, "events", len(e.events))
}
