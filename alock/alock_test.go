package alock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArrayLockConcurrentAccess(t *testing.T) {
	const numGoroutines = 16
	const iterations = 500
	lock := NewArrayLock(numGoroutines)
	counter := 0

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		handle := lock.NewHandle()
		go func(l *ArrayLock) {
			defer wg.Done()
			for range iterations {
				l.Lock()
				counter++
				l.Unlock()
			}
		}(handle)
	}
	wg.Wait()

	assert.Equal(t, numGoroutines*iterations, counter)
}

func TestArrayLockTryLock(t *testing.T) {
	lock := NewArrayLock(4)
	handle := lock.NewHandle()
	assert.True(t, handle.TryLock())
	handle.Unlock()
}
