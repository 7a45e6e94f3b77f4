package job

import (
	"context"
	"time"
)

// Sleeper waits between status fetches. Sleep returns nil after the full
// duration, ErrInterrupted when woken early, or the context's error when
// the caller cancels.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer. Interrupt wakes the current sleep.
type TimerSleeper struct {
	wake chan struct{}
}

// NewTimerSleeper returns a TimerSleeper.
func NewTimerSleeper() *TimerSleeper {
	return &TimerSleeper{wake: make(chan struct{}, 1)}
}

func (s *TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.wake:
		return ErrInterrupted
	}
}

// Interrupt cuts the current or next sleep short. It never blocks.
func (s *TimerSleeper) Interrupt() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
