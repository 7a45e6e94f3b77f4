package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a wall clock for tests that advances by a fixed
// step on every reading.
//
// The same test run twice reads the same sequence of times, so timestamps
// in ledgers and debug export directories are reproducible.
//
// Thread-safety: all methods are safe for concurrent use.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// Epoch is the default start of a DeterministicClock.
var Epoch = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// NewDeterministicClock creates a clock at Epoch that advances one second
// per reading.
func NewDeterministicClock() *DeterministicClock {
	return NewSteppingClock(Epoch, time.Second)
}

// NewSteppingClock creates a clock at start that advances step per reading.
func NewSteppingClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, now: start, step: step}
}

// Now returns the current time and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the next reading without advancing.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
