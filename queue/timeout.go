package queue

import (
	"context"
	"errors"
)

// IsTimeout reports whether err came from a context deadline elapsing
// (spec.md's "timeout" outcome) as opposed to an observed cancellation flag
// or an explicitly cancelled context (spec.md's "Interrupted" outcome).
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
