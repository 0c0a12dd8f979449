package relockfactory

import (
	"testing"

	"github.com/quoin-dev/relock/lockerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownQueueKind(t *testing.T) {
	_, err := New(true, QueueKind(99), SpinThenPark)
	assert.ErrorIs(t, err, lockerr.ErrInvalidArgument)
}

func TestNewRejectsUnknownWaitKind(t *testing.T) {
	_, err := New(true, CLH, WaitKind(99))
	assert.ErrorIs(t, err, lockerr.ErrInvalidArgument)
}

func TestPresetsAreUsable(t *testing.T) {
	l1 := NewCLHFairSpinThenPark()
	l1.Lock()
	require.NoError(t, l1.Unlock())

	l2 := NewMCSFairSpinThenPark()
	l2.Lock()
	require.NoError(t, l2.Unlock())

	l3 := NewCLHNonFairBusySpin()
	l3.Lock()
	require.NoError(t, l3.Unlock())
}
