// Package testutil provides deterministic time for tests: a manual clock and
// a manual scheduler that fire schedules only when tests advance virtual
// time. This keeps debounce, idle, and playback behavior testable without
// sleeping.
package testutil

import "sync"

// ManualClock is a virtual millisecond clock advanced explicitly by tests.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock creates a clock at t=0.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// NowMs returns the current virtual time in milliseconds.
func (c *ManualClock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by ms milliseconds.
func (c *ManualClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}

// Set jumps the clock to an absolute virtual time. Never moves backwards.
func (c *ManualClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ms > c.now {
		c.now = ms
	}
}
