// Package queue defines the FIFO admission-control contract shared by the
// CLH and MCS queueing disciplines: enqueue-and-acquire, a timed variant,
// and successor wakeup on release.
package queue

import (
	"context"

	"github.com/quoin-dev/relock/waitstrategy"
)

// TryAcquireFunc is invoked by a Policy, with the calling goroutine's
// identity implicit, to test and claim the guarded lock word. It must be
// idempotent under spurious retries: returning true when the lock is
// already held by the caller (reentrant collapse) or when a compare-and-swap
// from empty to the caller succeeds.
type TryAcquireFunc func() bool

// Policy is a FIFO wait queue: callers who lose a fast-path race enqueue
// here and are admitted in arrival order.
type Policy interface {
	// EnqueueAndAcquire blocks the calling goroutine until tryAcquire
	// returns true, admitting callers strictly in the order they enqueued.
	// It returns a non-nil error only if ctx is done or the caller's
	// cancellation flag is observed set.
	EnqueueAndAcquire(ctx context.Context, tryAcquire TryAcquireFunc, wait waitstrategy.Strategy) error

	// TryAcquireWithTimeout is EnqueueAndAcquire bounded by ctx's deadline.
	// It returns (true, nil) on success, (false, nil) on timeout, and
	// (false, err) if cancellation is observed first.
	TryAcquireWithTimeout(ctx context.Context, tryAcquire TryAcquireFunc, wait waitstrategy.Strategy) (bool, error)

	// UnparkSuccessor wakes the head of the queue, if any, as an aid for
	// goroutines currently parked inside a wait strategy. It never blocks.
	UnparkSuccessor()
}
