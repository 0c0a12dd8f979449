// Package hostruntime supplies the primitives the lock core treats as an
// external collaborator: per-thread identity, a parking facility, cooperative
// cancellation flags, and a CPU pause hint. The standard library has no
// goroutine-local storage and no LockSupport-style per-thread park/unpark, so
// this package stands in for what a hosting runtime would otherwise provide.
package hostruntime

import (
	"runtime"
	"sync"
	"time"

	"github.com/petermattis/goid"
)

// CurrentGoroutineID returns a stable identity for the calling goroutine.
// IDs are assigned by the Go runtime and start at 1, so 0 is safe to use as
// an "unheld" sentinel in owner fields.
func CurrentGoroutineID() int64 {
	return goid.Get()
}

// Pause hints to the scheduler that the caller is spin-waiting. It has no
// return value and never blocks for more than a scheduling quantum.
func Pause() {
	runtime.Gosched()
}

var permits sync.Map // goroutine id (int64) -> chan struct{}, capacity 1

func permitChan(id int64) chan struct{} {
	if v, ok := permits.Load(id); ok {
		return v.(chan struct{})
	}
	ch := make(chan struct{}, 1)
	v, _ := permits.LoadOrStore(id, ch)
	return v.(chan struct{})
}

// Unpark issues a permit to the goroutine identified by id. If a permit is
// already outstanding this is a no-op, matching LockSupport.unpark's
// idempotent-permit semantics.
func Unpark(id int64) {
	ch := permitChan(id)
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Park blocks the calling goroutine until it holds a permit or budget
// elapses, whichever comes first, then returns whether a permit was
// consumed. A permit issued before Park is called is consumed immediately.
func Park(budget time.Duration) bool {
	ch := permitChan(CurrentGoroutineID())
	if budget <= 0 {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

var interruptMu sync.Mutex
var interruptSet = map[int64]bool{}

// Interrupt sets the cooperative cancellation flag for the goroutine
// identified by id. It also issues a park permit so a parked goroutine
// wakes promptly to observe the flag.
func Interrupt(id int64) {
	interruptMu.Lock()
	interruptSet[id] = true
	interruptMu.Unlock()
	Unpark(id)
}

// TestAndClearInterrupted reports whether the calling goroutine's
// cancellation flag was set, clearing it as a side effect.
func TestAndClearInterrupted() bool {
	id := CurrentGoroutineID()
	interruptMu.Lock()
	defer interruptMu.Unlock()
	if interruptSet[id] {
		delete(interruptSet, id)
		return true
	}
	return false
}
