package reentrant

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quoin-dev/relock/internal/hostruntime"
	"github.com/quoin-dev/relock/lockerr"
)

// condWaiter is one outstanding Condition wait.
type condWaiter struct {
	id        int64
	signalled atomic.Bool
}

// Condition is a FIFO condition variable bound to exactly one Lock. Its
// waiter list is guarded by its own mutex, held only across list mutation
// and never across a park, per spec.md §5.
//
// The waiter list is a container/list rather than the module's
// orderedmap-backed queue.NodeRegistry: signal must pop the front waiter
// and a cancelled wait must splice itself out from an arbitrary position,
// both O(1) given the *list.Element, which orderedmap's map-shaped API
// doesn't expose. No third-party FIFO-with-arbitrary-removal container
// appears anywhere in the example pack, so this one data structure is
// carried on the standard library; see DESIGN.md.
type Condition struct {
	lock    *Lock
	mu      sync.Mutex
	waiters *list.List
}

func newCondition(lock *Lock) *Condition {
	return &Condition{lock: lock, waiters: list.New()}
}

// enter validates ownership, fully releases the lock, and enrolls the
// caller as a waiter. It returns the saved hold count to restore on
// reacquire.
func (c *Condition) enter() (int, *condWaiter, *list.Element, error) {
	if !c.lock.IsHeldByCurrentGoroutine() {
		return 0, nil, nil, lockerr.ErrNotOwner
	}
	saved := c.lock.HoldCount()
	for i := 0; i < saved; i++ {
		if err := c.lock.Unlock(); err != nil {
			return 0, nil, nil, err
		}
	}
	w := &condWaiter{id: hostruntime.CurrentGoroutineID()}
	c.mu.Lock()
	elem := c.waiters.PushBack(w)
	c.mu.Unlock()
	return saved, w, elem, nil
}

// reacquire restores the lock to saved holds, per spec.md §4.5's bounded
// reacquire procedure: poll TryLock with a short park between attempts, then
// replay the remaining plain Lock calls to rebuild the hold count.
func (c *Condition) reacquire(saved int) {
	for !c.lock.TryLock() {
		hostruntime.Park(time.Millisecond)
	}
	for i := 1; i < saved; i++ {
		c.lock.Lock()
	}
}

// awaitCore parks until w is signalled or cancellation is observed via ctx
// or the caller's flag, removing w from the FIFO on the non-signalled exit
// path. Racing with a concurrent signal is resolved under c.mu: signal
// stores signalled=true while holding c.mu, and this function re-checks
// signalled under c.mu before deciding to remove — so a signal that has
// begun is always honored instead of reported as cancellation.
func (c *Condition) awaitCore(ctx context.Context, w *condWaiter, elem *list.Element) error {
	for {
		if w.signalled.Load() {
			return nil
		}
		hostruntime.Park(time.Millisecond)
		if w.signalled.Load() {
			return nil
		}

		var cancelErr error
		select {
		case <-ctx.Done():
			cancelErr = ctx.Err()
		default:
		}
		if cancelErr == nil && hostruntime.TestAndClearInterrupted() {
			cancelErr = lockerr.ErrInterrupted
		}
		if cancelErr == nil {
			continue
		}

		c.mu.Lock()
		if w.signalled.Load() {
			c.mu.Unlock()
			return nil
		}
		c.waiters.Remove(elem)
		c.mu.Unlock()
		return cancelErr
	}
}

// Await releases the lock, waits for a signal or ctx cancellation, and
// reacquires the lock to its prior hold count before returning. It requires
// the caller to hold the lock, failing lockerr.ErrNotOwner otherwise.
func (c *Condition) Await(ctx context.Context) error {
	saved, w, elem, err := c.enter()
	if err != nil {
		return err
	}
	cancelErr := c.awaitCore(ctx, w, elem)
	c.reacquire(saved)
	return cancelErr
}

// AwaitUninterruptibly is Await but ignores cancellation while parked;
// an observed cancellation is deferred and re-raised on the caller's own
// flag after the lock is reacquired.
func (c *Condition) AwaitUninterruptibly() error {
	saved, w, _, err := c.enter()
	if err != nil {
		return err
	}
	id := hostruntime.CurrentGoroutineID()
	deferred := false
	for !w.signalled.Load() {
		hostruntime.Park(time.Millisecond)
		if hostruntime.TestAndClearInterrupted() {
			deferred = true
		}
	}
	c.reacquire(saved)
	if deferred {
		hostruntime.Interrupt(id)
	}
	return nil
}

// AwaitNanos is Await bounded by d. It returns the residual budget (zero or
// negative on timeout, positive if signalled first) and only returns a
// non-nil error for an observed cancellation, never for a plain timeout.
func (c *Condition) AwaitNanos(d time.Duration) (time.Duration, error) {
	saved, w, elem, err := c.enter()
	if err != nil {
		return 0, err
	}
	deadline := time.Now().Add(d)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	cancelErr := c.awaitCore(ctx, w, elem)
	c.reacquire(saved)
	remaining := time.Until(deadline)
	if cancelErr != nil && !errors.Is(cancelErr, context.DeadlineExceeded) {
		return remaining, cancelErr
	}
	return remaining, nil
}

// AwaitTimeout delegates to AwaitNanos, reporting whether the wait was
// satisfied (residual > 0) before the timeout elapsed.
func (c *Condition) AwaitTimeout(d time.Duration) (bool, error) {
	remaining, err := c.AwaitNanos(d)
	return remaining > 0, err
}

// AwaitUntil delegates to AwaitTimeout with the duration until deadline,
// returning false immediately if deadline has already passed.
func (c *Condition) AwaitUntil(deadline time.Time) (bool, error) {
	d := time.Until(deadline)
	if d <= 0 {
		return false, nil
	}
	return c.AwaitTimeout(d)
}

// Signal wakes the longest-waiting goroutine, if any. It requires the
// caller to hold the lock.
func (c *Condition) Signal() error {
	if !c.lock.IsHeldByCurrentGoroutine() {
		return lockerr.ErrNotOwner
	}
	c.mu.Lock()
	front := c.waiters.Front()
	if front == nil {
		c.mu.Unlock()
		return nil
	}
	c.waiters.Remove(front)
	w := front.Value.(*condWaiter)
	w.signalled.Store(true)
	c.mu.Unlock()

	hostruntime.Unpark(w.id)
	return nil
}

// SignalAll wakes every waiting goroutine. It requires the caller to hold
// the lock.
func (c *Condition) SignalAll() error {
	if !c.lock.IsHeldByCurrentGoroutine() {
		return lockerr.ErrNotOwner
	}
	c.mu.Lock()
	woken := make([]*condWaiter, 0, c.waiters.Len())
	for e := c.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*condWaiter)
		w.signalled.Store(true)
		woken = append(woken, w)
	}
	c.waiters.Init()
	c.mu.Unlock()

	for _, w := range woken {
		hostruntime.Unpark(w.id)
	}
	return nil
}
