// Package relockfactory is the thin, deliberately non-core glue that
// selects a queue.Policy and a waitstrategy.Strategy and wires them into a
// reentrant.Lock. Per spec.md §1, the factory surface, enum selection, and
// named presets are the only external-collaborator concerns this module
// exposes; there is no metrics, logging, or CLI layer here.
package relockfactory

import (
	"fmt"

	"github.com/quoin-dev/relock/lockerr"
	"github.com/quoin-dev/relock/queue"
	"github.com/quoin-dev/relock/queue/clh"
	"github.com/quoin-dev/relock/queue/mcs"
	"github.com/quoin-dev/relock/reentrant"
	"github.com/quoin-dev/relock/waitstrategy"
)

// QueueKind selects a queueing discipline.
type QueueKind int

const (
	CLH QueueKind = iota
	MCS
)

// WaitKind selects a waiting discipline.
type WaitKind int

const (
	BusySpin WaitKind = iota
	SpinThenPark
)

// DefaultBusySpinMaxSpins and DefaultSpinThenParkSpins are the spin counts
// New uses when a caller doesn't need to tune them directly. Presets below
// use the same values as spec.md's illustrative examples.
const (
	DefaultBusySpinMaxSpins  = 64
	DefaultSpinThenParkSpins = 8
)

func newPolicy(q QueueKind) (queue.Policy, error) {
	switch q {
	case CLH:
		return clh.New(), nil
	case MCS:
		return mcs.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown QueueKind %d", lockerr.ErrInvalidArgument, q)
	}
}

func newWaitStrategy(w WaitKind) (waitstrategy.Strategy, error) {
	switch w {
	case BusySpin:
		return waitstrategy.NewBusySpin(DefaultBusySpinMaxSpins)
	case SpinThenPark:
		return waitstrategy.NewSpinThenPark(DefaultSpinThenParkSpins)
	default:
		return nil, fmt.Errorf("%w: unknown WaitKind %d", lockerr.ErrInvalidArgument, w)
	}
}

// New builds a reentrant.Lock from a queue kind, a wait kind, and fairness.
func New(fair bool, q QueueKind, w WaitKind) (*reentrant.Lock, error) {
	policy, err := newPolicy(q)
	if err != nil {
		return nil, err
	}
	wait, err := newWaitStrategy(w)
	if err != nil {
		return nil, err
	}
	return reentrant.New(fair, policy, wait), nil
}

// NewCLHFairSpinThenPark is spec.md §6's "CLH fair with spin-then-park"
// named preset.
func NewCLHFairSpinThenPark() *reentrant.Lock {
	l, err := New(true, CLH, SpinThenPark)
	if err != nil {
		panic(err) // unreachable: constant, in-range arguments
	}
	return l
}

// NewMCSFairSpinThenPark is spec.md §6's "MCS fair with spin-then-park"
// named preset.
func NewMCSFairSpinThenPark() *reentrant.Lock {
	l, err := New(true, MCS, SpinThenPark)
	if err != nil {
		panic(err)
	}
	return l
}

// NewCLHNonFairBusySpin is spec.md §6's "CLH non-fair with busy-spin" named
// preset.
func NewCLHNonFairBusySpin() *reentrant.Lock {
	l, err := New(false, CLH, BusySpin)
	if err != nil {
		panic(err)
	}
	return l
}
