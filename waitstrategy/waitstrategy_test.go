package waitstrategy

import (
	"context"
	"testing"
	"time"

	"github.com/quoin-dev/relock/internal/hostruntime"
	"github.com/quoin-dev/relock/lockerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusySpinRejectsNonPositiveSpins(t *testing.T) {
	tests := []struct {
		name     string
		maxSpins int
		wantErr  bool
	}{
		{"zero", 0, true},
		{"negative", -1, true},
		{"one", 1, false},
		{"large", 10_000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBusySpin(tt.maxSpins)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, lockerr.ErrInvalidArgument)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewSpinThenParkRejectsNegativeSpins(t *testing.T) {
	_, err := NewSpinThenPark(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, lockerr.ErrInvalidArgument)

	_, err = NewSpinThenPark(0)
	require.NoError(t, err)
}

func TestBusySpinAwaitObservesContextCancellation(t *testing.T) {
	s, err := NewBusySpin(4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Await(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBusySpinAwaitObservesInterruptFlag(t *testing.T) {
	s, err := NewBusySpin(4)
	require.NoError(t, err)

	hostruntime.Interrupt(hostruntime.CurrentGoroutineID())
	err = s.Await(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lockerr.ErrInterrupted)

	// The flag is cleared as a side effect: a second Await should not fail.
	err = s.Await(context.Background())
	assert.NoError(t, err)
}

func TestSpinThenParkAwaitReturnsPromptlyWhenUninterrupted(t *testing.T) {
	s, err := NewSpinThenPark(10)
	require.NoError(t, err)

	start := time.Now()
	err = s.Await(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSpinThenParkNeverBlocksIndefinitely(t *testing.T) {
	s, err := NewSpinThenPark(0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = s.Await(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await blocked indefinitely")
	}
}
