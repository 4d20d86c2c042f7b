// Package timer provides named, cancelable one-shot schedules for the
// client-side components (debounce flushes, idle detection, playback
// stepping). Naming every schedule makes rescheduling explicit and lets tests
// drive virtual time deterministically through a manual implementation.
package timer

import (
	"sync"
	"time"
)

// Well-known schedule names.
const (
	IdleFlush    = "idleFlush"
	LineFlush    = "lineFlush"
	PlaybackStep = "playbackStep"
)

// Scheduler schedules named one-shot callbacks. Scheduling a name that is
// already pending replaces the pending schedule (restart-on-activity
// semantics). Callbacks run on their own goroutine in the production
// implementation; callers guard their own state.
type Scheduler interface {
	// Schedule arranges for fn to run after delay, replacing any pending
	// schedule with the same name.
	Schedule(name string, delay time.Duration, fn func())
	// Cancel drops the pending schedule with the given name, if any.
	Cancel(name string)
	// Stop cancels every pending schedule. The scheduler accepts no further
	// schedules after Stop.
	Stop()
}

// Clock supplies the current time in milliseconds. Components stamp events
// relative to session start by diffing two readings.
type Clock interface {
	NowMs() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// NowMs returns the current Unix time in milliseconds.
func (SystemClock) NowMs() int64 {
	return time.Now().UnixMilli()
}

// Real is the production Scheduler backed by time.AfterFunc.
type Real struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewReal creates a production scheduler.
func NewReal() *Real {
	return &Real{timers: make(map[string]*time.Timer)}
}

// Schedule implements Scheduler. A pending schedule with the same name is
// stopped before the replacement is armed.
func (r *Real) Schedule(name string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if t, ok := r.timers[name]; ok {
		t.Stop()
	}
	r.timers[name] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, name)
		r.mu.Unlock()
		fn()
	})
}

// Cancel implements Scheduler.
func (r *Real) Cancel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[name]; ok {
		t.Stop()
		delete(r.timers, name)
	}
}

// Stop implements Scheduler.
func (r *Real) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
}
