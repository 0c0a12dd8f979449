// Package benchmark compares the reentrant.Lock presets against the
// teacher's other two queueing disciplines and the standard library mutex,
// per SPEC_FULL.md §10: alock.ArrayLock and ticket.Lock aren't swappable
// queue.Policy implementations, but they stay in the tree as baselines this
// package exercises.
package benchmark

import (
	"context"
	"sync"
	"testing"

	"github.com/marusama/cyclicbarrier"
	"github.com/quoin-dev/relock/alock"
	"github.com/quoin-dev/relock/relockfactory"
	"github.com/quoin-dev/relock/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// locker is the common shape every contender under test satisfies. Unlock
// is intentionally the narrow, error-free signature: reentrant.Lock.Unlock
// returns an error only on caller misuse, which none of these benchmarks
// trigger, so the wrapper below discards it rather than widen this
// interface across every non-reentrant contender that doesn't have one.
type locker interface {
	Lock()
	Unlock()
}

// lockUnlocker is the shape reentrant.Lock satisfies.
type lockUnlocker interface {
	Lock()
	Unlock() error
}

// reentrantAdapter discards reentrant.Lock.Unlock's error so the lock can
// be driven through the same locker interface as the non-reentrant
// baselines in this comparison.
type reentrantAdapter struct{ l lockUnlocker }

func adapt(l lockUnlocker) locker { return reentrantAdapter{l} }

func (r reentrantAdapter) Lock()   { r.l.Lock() }
func (r reentrantAdapter) Unlock() { _ = r.l.Unlock() }

// runContended synchronizes numGoroutines with a cyclicbarrier so every
// contender starts its hammering in the same instant instead of trickling
// in, then drives them with an errgroup and returns the final counter.
func runContended(t *testing.T, l locker, numGoroutines, iterations int) int {
	t.Helper()
	barrier := cyclicbarrier.New(numGoroutines)
	counter := 0
	var mu sync.Mutex // guards counter increments from data-racing with the lock under test

	var g errgroup.Group
	for i := 0; i < numGoroutines; i++ {
		g.Go(func() error {
			if err := barrier.Await(context.Background()); err != nil {
				return err
			}
			for j := 0; j < iterations; j++ {
				l.Lock()
				mu.Lock()
				counter++
				mu.Unlock()
				l.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	return counter
}

func TestContendedCorrectnessAcrossContenders(t *testing.T) {
	const numGoroutines = 8
	const iterations = 200

	al := alock.NewArrayLock(uint32(numGoroutines))
	tl := ticket.NewLock()
	clhLock := relockfactory.NewCLHFairSpinThenPark()
	mcsLock := relockfactory.NewMCSFairSpinThenPark()
	nonFair := relockfactory.NewCLHNonFairBusySpin()
	var mtx sync.Mutex

	cases := map[string]locker{
		"sync.Mutex":             &mtx,
		"ticket.Lock":            tl,
		"reentrant/CLH/fair":     adapt(clhLock),
		"reentrant/MCS/fair":     adapt(mcsLock),
		"reentrant/CLH/non-fair": adapt(nonFair),
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			got := runContended(t, l, numGoroutines, iterations)
			assert.Equal(t, numGoroutines*iterations, got)
		})
	}

	t.Run("alock.ArrayLock", func(t *testing.T) {
		barrier := cyclicbarrier.New(numGoroutines)
		counter := 0
		var mu sync.Mutex

		var g errgroup.Group
		for i := 0; i < numGoroutines; i++ {
			handle := al.NewHandle()
			g.Go(func() error {
				if err := barrier.Await(context.Background()); err != nil {
					return err
				}
				for j := 0; j < iterations; j++ {
					handle.Lock()
					mu.Lock()
					counter++
					mu.Unlock()
					handle.Unlock()
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, numGoroutines*iterations, counter)
	})
}

func BenchmarkReentrantCLHFairSpinThenPark(b *testing.B) {
	l := relockfactory.NewCLHFairSpinThenPark()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			_ = l.Unlock()
		}
	})
}

func BenchmarkReentrantMCSFairSpinThenPark(b *testing.B) {
	l := relockfactory.NewMCSFairSpinThenPark()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			_ = l.Unlock()
		}
	})
}

func BenchmarkReentrantCLHNonFairBusySpin(b *testing.B) {
	l := relockfactory.NewCLHNonFairBusySpin()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			_ = l.Unlock()
		}
	})
}

func BenchmarkTicketLock(b *testing.B) {
	l := ticket.NewLock()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			l.Lock()
			l.Unlock()
		}
	})
}

func BenchmarkArrayLock(b *testing.B) {
	shared := alock.NewArrayLock(64)
	b.RunParallel(func(pb *testing.PB) {
		l := shared.NewHandle()
		for pb.Next() {
			l.Lock()
			l.Unlock()
		}
	})
}
