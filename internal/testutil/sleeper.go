package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper returns immediately and records every requested duration.
// Scripted outcomes make chosen sleeps end early.
type FakeSleeper struct {
	mu       sync.Mutex
	slept    []time.Duration
	outcomes map[int]error
}

// NewFakeSleeper creates a FakeSleeper whose sleeps all complete.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{outcomes: make(map[int]error)}
}

// FailAt makes the n-th sleep (1-based) return err. Pass the sleep
// package's interruption error to simulate a wake-up.
func (s *FakeSleeper) FailAt(n int, err error) *FakeSleeper {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[n] = err
	return s
}

func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return s.outcomes[len(s.slept)]
}

// Calls returns how many sleeps were requested.
func (s *FakeSleeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slept)
}

// Durations returns every requested duration in order.
func (s *FakeSleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}
