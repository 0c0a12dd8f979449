// Package reentrant implements the owner/hold-count state machine that sits
// on top of a queue.Policy: fast-path reentry, an optional barging CAS for
// non-fair mode, and delegation to the queue on a miss.
package reentrant

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/quoin-dev/relock/internal/hostruntime"
	"github.com/quoin-dev/relock/lockerr"
	"github.com/quoin-dev/relock/queue"
	"github.com/quoin-dev/relock/waitstrategy"
)

// Lock is a reentrant mutual-exclusion lock backed by a pluggable
// queue.Policy and waitstrategy.Strategy. The zero value is not usable;
// construct with New.
type Lock struct {
	owner     atomic.Int64
	holdCount atomic.Int32
	fair      bool
	policy    queue.Policy
	wait      waitstrategy.Strategy
}

// New builds a Lock. fair disables the barging fast-path: every contending
// goroutine, including fresh arrivals, goes through policy in arrival order.
func New(fair bool, policy queue.Policy, wait waitstrategy.Strategy) *Lock {
	return &Lock{fair: fair, policy: policy, wait: wait}
}

// tryAcquire is the queue.TryAcquireFunc every queue.Policy drives. It
// returns true for a reentrant collapse (owner already the caller) or a
// fresh CAS from empty to the caller, setting holdCount to 1 only on the
// fresh-acquire branch. It must stay idempotent under spurious retries.
func (l *Lock) tryAcquire() bool {
	id := hostruntime.CurrentGoroutineID()
	if l.owner.Load() == id {
		return true
	}
	if l.owner.CompareAndSwap(0, id) {
		l.holdCount.Store(1)
		return true
	}
	return false
}

// Lock blocks until the caller holds the lock. It is reentrant: a caller
// that already holds it simply increments the hold count. It never returns
// an error — an observed cancellation flag is absorbed and re-raised on the
// caller's own flag once the lock is held, per spec.md §4.4.
func (l *Lock) Lock() {
	id := hostruntime.CurrentGoroutineID()
	if l.owner.Load() == id {
		l.holdCount.Add(1)
		return
	}
	if !l.fair && l.owner.CompareAndSwap(0, id) {
		l.holdCount.Store(1)
		return
	}

	deferred := false
	for {
		err := l.policy.EnqueueAndAcquire(context.Background(), l.tryAcquire, l.wait)
		if err == nil {
			break
		}
		if errors.Is(err, lockerr.ErrInterrupted) {
			deferred = true
			continue
		}
		// context.Background() is never Done, so no other error is possible
		// from EnqueueAndAcquire; treat anything else as spurious and retry.
	}
	if deferred {
		hostruntime.Interrupt(id)
	}
}

// LockInterruptibly blocks until the caller holds the lock or ctx is done /
// the caller's cancellation flag is observed, in which case it returns
// lockerr.ErrInterrupted or ctx.Err() without acquiring.
func (l *Lock) LockInterruptibly(ctx context.Context) error {
	id := hostruntime.CurrentGoroutineID()
	if l.owner.Load() == id {
		l.holdCount.Add(1)
		return nil
	}
	if !l.fair && l.owner.CompareAndSwap(0, id) {
		l.holdCount.Store(1)
		return nil
	}
	return l.policy.EnqueueAndAcquire(ctx, l.tryAcquire, l.wait)
}

// TryLock attempts the fast paths only — reentrant collapse or a bare CAS —
// never consulting the queue. A reentrant success increments the hold count,
// just as Lock does.
func (l *Lock) TryLock() bool {
	id := hostruntime.CurrentGoroutineID()
	if l.owner.Load() == id {
		l.holdCount.Add(1)
		return true
	}
	if l.owner.CompareAndSwap(0, id) {
		l.holdCount.Store(1)
		return true
	}
	return false
}

// TryLockContext attempts the same fast paths as TryLock — reentrant
// collapse, then a barging CAS — regardless of fair mode, then falls back to
// the queue's timed admission bounded by ctx. original_source's
// AbstractQueuedLock.tryLock(long, TimeUnit) runs the identical unconditional
// compareAndSet(null, current) that its untimed tryLock() does, with no
// fairness check in either method; this mirrors that. It returns (true, nil)
// on success, (false, nil) on timeout, and (false, err) if cancellation is
// observed before either outcome.
func (l *Lock) TryLockContext(ctx context.Context) (bool, error) {
	if l.TryLock() {
		return true, nil
	}
	return l.policy.TryAcquireWithTimeout(ctx, l.tryAcquire, l.wait)
}

// Unlock releases one hold. It returns lockerr.ErrNotOwner if the caller
// does not hold the lock, leaving state unchanged.
func (l *Lock) Unlock() error {
	id := hostruntime.CurrentGoroutineID()
	if l.owner.Load() != id {
		return lockerr.ErrNotOwner
	}
	if l.holdCount.Add(-1) > 0 {
		return nil
	}
	l.owner.Store(0)
	l.policy.UnparkSuccessor()
	return nil
}

// NewCondition returns a fresh Condition bound to this lock.
func (l *Lock) NewCondition() *Condition {
	return newCondition(l)
}

// IsLocked reports whether any goroutine currently holds the lock.
func (l *Lock) IsLocked() bool {
	return l.owner.Load() != 0
}

// IsHeldByCurrentGoroutine reports whether the calling goroutine holds the
// lock.
func (l *Lock) IsHeldByCurrentGoroutine() bool {
	return l.owner.Load() == hostruntime.CurrentGoroutineID()
}

// HoldCount returns the caller's snapshot of the current hold count. It is
// meaningful only while IsLocked is true.
func (l *Lock) HoldCount() int {
	return int(l.holdCount.Load())
}
