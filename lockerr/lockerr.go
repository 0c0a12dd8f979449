// Package lockerr defines the sentinel error kinds shared by relock's core
// packages, per spec.md §7: NotOwner, Interrupted, and InvalidArgument.
package lockerr

import "errors"

// ErrNotOwner is returned when a caller invokes an owner-only operation
// (Unlock, a Condition wait/signal) without holding the lock. Lock state is
// left unchanged.
var ErrNotOwner = errors.New("relock: caller does not hold the lock")

// ErrInterrupted is returned when cooperative cancellation is observed
// during a blocking operation. The cancellation flag is cleared as part of
// raising this error.
var ErrInterrupted = errors.New("relock: interrupted")

// ErrInvalidArgument is returned for construction-time parameter checks. It
// is never returned from a hot-path (acquire/release) call.
var ErrInvalidArgument = errors.New("relock: invalid argument")
