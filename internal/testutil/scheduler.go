package testutil

import (
	"sync"
	"time"
)

type pendingSchedule struct {
	name string
	due  int64
	fn   func()
}

// ManualScheduler implements timer.Scheduler against a ManualClock. Schedules
// fire synchronously when Advance crosses their due time, in due order, which
// makes debounce and playback tests fully deterministic.
type ManualScheduler struct {
	mu      sync.Mutex
	clock   *ManualClock
	pending []pendingSchedule
	stopped bool
}

// NewManualScheduler creates a scheduler driven by the given clock.
func NewManualScheduler(clock *ManualClock) *ManualScheduler {
	return &ManualScheduler{clock: clock}
}

// Schedule replaces any pending schedule with the same name, mirroring the
// production scheduler's restart-on-activity semantics.
func (s *ManualScheduler) Schedule(name string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.removeLocked(name)
	s.pending = append(s.pending, pendingSchedule{
		name: name,
		due:  s.clock.NowMs() + delay.Milliseconds(),
		fn:   fn,
	})
}

// Cancel drops the named pending schedule, if any.
func (s *ManualScheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

// Stop cancels everything and rejects further schedules.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pending = nil
}

// Advance moves virtual time forward and fires every schedule that comes due,
// in due order. The clock is stepped to each schedule's due time before its
// callback runs, so a callback that schedules again computes its next due
// relative to the instant it fired; newly due schedules within the same
// advance window also fire. The clock ends at the window's target time.
func (s *ManualScheduler) Advance(ms int64) {
	target := s.clock.NowMs() + ms
	for {
		next, ok := s.popDue(target)
		if !ok {
			break
		}
		s.clock.Set(next.due)
		next.fn()
	}
	s.clock.Set(target)
}

// Pending returns the number of schedules not yet fired.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// HasPending reports whether a schedule with the given name is armed.
func (s *ManualScheduler) HasPending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		if p.name == name {
			return true
		}
	}
	return false
}

// popDue removes and returns the earliest schedule due at or before target.
// Ties keep insertion order.
func (s *ManualScheduler) popDue(target int64) (pendingSchedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	for i := range s.pending {
		if s.pending[i].due > target {
			continue
		}
		if best == -1 || s.pending[i].due < s.pending[best].due {
			best = i
		}
	}
	if best == -1 {
		return pendingSchedule{}, false
	}
	p := s.pending[best]
	s.pending = append(s.pending[:best], s.pending[best+1:]...)
	return p, true
}

func (s *ManualScheduler) removeLocked(name string) {
	for i := range s.pending {
		if s.pending[i].name == name {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
