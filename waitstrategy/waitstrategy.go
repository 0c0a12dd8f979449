// Package waitstrategy provides the pacing policies a queue.Policy uses
// between rechecks of its spin predicate. A strategy burns some real time,
// observes cooperative cancellation, and never blocks indefinitely; it is
// never responsible for the wakeup itself.
package waitstrategy

import (
	"context"
	"fmt"
	"time"

	"github.com/quoin-dev/relock/internal/hostruntime"
	"github.com/quoin-dev/relock/lockerr"
)

// Strategy paces a caller's recheck loop.
type Strategy interface {
	// Await consumes some real time and returns a non-nil error if ctx is
	// done or if the calling goroutine's cancellation flag was observed set
	// (the flag is cleared as a side effect of observing it).
	Await(ctx context.Context) error
}

// BusySpin emits maxSpins CPU pause hints, yields once more, then checks
// cancellation.
type BusySpin struct {
	maxSpins int
}

// NewBusySpin builds a BusySpin strategy. maxSpins must be >= 1.
func NewBusySpin(maxSpins int) (*BusySpin, error) {
	if maxSpins < 1 {
		return nil, fmt.Errorf("%w: BusySpin maxSpins must be >= 1, got %d", lockerr.ErrInvalidArgument, maxSpins)
	}
	return &BusySpin{maxSpins: maxSpins}, nil
}

func (b *BusySpin) Await(ctx context.Context) error {
	for i := 0; i < b.maxSpins; i++ {
		hostruntime.Pause()
	}
	hostruntime.Pause()
	return checkCancelled(ctx)
}

// SpinThenPark emits spins CPU pause hints, then parks for one microsecond,
// then checks cancellation.
type SpinThenPark struct {
	spins int
}

// NewSpinThenPark builds a SpinThenPark strategy. spins must be >= 0.
func NewSpinThenPark(spins int) (*SpinThenPark, error) {
	if spins < 0 {
		return nil, fmt.Errorf("%w: SpinThenPark spins must be >= 0, got %d", lockerr.ErrInvalidArgument, spins)
	}
	return &SpinThenPark{spins: spins}, nil
}

func (s *SpinThenPark) Await(ctx context.Context) error {
	for i := 0; i < s.spins; i++ {
		hostruntime.Pause()
	}
	hostruntime.Park(time.Microsecond)
	return checkCancelled(ctx)
}

func checkCancelled(ctx context.Context) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if hostruntime.TestAndClearInterrupted() {
		return lockerr.ErrInterrupted
	}
	return nil
}
