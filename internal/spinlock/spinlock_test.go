package spinlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock(t *testing.T) {
	var s Spinlock
	require.True(t, s.TryLock())
	assert.False(t, s.TryLock(), "second TryLock while held must fail")
	s.Unlock()
	assert.True(t, s.TryLock(), "TryLock after Unlock must succeed")
}

func TestUnlockOfUnlockedPanics(t *testing.T) {
	var s Spinlock
	assert.Panics(t, func() { s.Unlock() })
}

func TestLockBlocksUntilReleased(t *testing.T) {
	var s Spinlock
	require.True(t, s.TryLock())

	done := make(chan struct{})
	go func() {
		s.Lock(time.Second)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Lock returned before the holder released")
	case <-time.After(20 * time.Millisecond):
	}

	s.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock never acquired after release")
	}
}

func TestLockTimeoutAborts(t *testing.T) {
	var s Spinlock
	require.True(t, s.TryLock())

	aborted := make(chan string, 1)
	restore := SetAbortForTest(func(reason string) { aborted <- reason })
	defer restore()

	s.Lock(10 * time.Millisecond)

	select {
	case reason := <-aborted:
		assert.Contains(t, reason, "timed out")
	case <-time.After(time.Second):
		t.Fatal("abort was never called")
	}
}

func TestReset(t *testing.T) {
	var s Spinlock
	require.True(t, s.TryLock())
	s.Reset()
	assert.True(t, s.TryLock(), "Reset must clear the lock unconditionally")
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	var s Spinlock
	func() {
		defer func() { recover() }()
		s.WithLock(time.Second, func() { panic("boom") })
	}()
	assert.True(t, s.TryLock(), "WithLock must release the lock even on panic")
}

func TestConcurrentWithLockSerializes(t *testing.T) {
	var s Spinlock
	var counter int
	var wg sync.WaitGroup
	const goroutines = 50
	const perGoroutine = 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				s.WithLock(time.Second, func() { counter++ })
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*perGoroutine, counter)
}
