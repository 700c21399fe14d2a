// Package spinlock provides a one-word spin lock with a bounded busy wait
// and a loud, unrecoverable failure mode on timeout.
//
// Critical sections guarded by this lock are expected to run for tens of
// instructions, not for the duration of a syscall. A kernel-mediated mutex
// would trade that for priority-inversion risk and syscall cost on every
// allocation hook invocation, so a spin loop is used instead (spec §9).
package spinlock

import (
	"runtime"
	"sync/atomic"
	"time"
)

// abort is overridable by tests so a timeout doesn't actually kill the
// test binary.
var abort = defaultAbort

// Spinlock is a single-bit mutual-exclusion primitive with a try-acquire
// mode and a deadline-bounded blocking acquire.
type Spinlock struct {
	held atomic.Bool
}

// TryLock attempts a single acquisition and reports whether it succeeded.
func (s *Spinlock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// Lock spins until the lock is acquired or deadline elapses, in which case
// the process is aborted: the profiler treats a spinlock timeout as a
// violated internal invariant, never as a recoverable error (spec §4.2,
// §7).
func (s *Spinlock) Lock(deadline time.Duration) {
	end := time.Now().Add(deadline)
	spins := 0
	for !s.TryLock() {
		if time.Now().After(end) {
			abort("spinlock acquire timed out")
			return
		}
		spins++
		if spins < 64 {
			continue
		}
		runtime.Gosched()
	}
}

// Unlock releases the lock. Unlock on a lock that isn't held is a bug in
// the caller and panics rather than silently corrupting state.
func (s *Spinlock) Unlock() {
	if !s.held.CompareAndSwap(true, false) {
		panic("spinlock: Unlock of unlocked Spinlock")
	}
}

// Reset force-clears the lock without checking whether it was held. Used
// exclusively by the post-fork-child handler: the only pre-fork holder is
// guaranteed dead in the child, so there is nothing to race with (spec
// §4.7).
func (s *Spinlock) Reset() {
	s.held.Store(false)
}

// WithLock runs fn holding the lock, guaranteeing release on every return
// path including a panic inside fn.
func (s *Spinlock) WithLock(deadline time.Duration, fn func()) {
	s.Lock(deadline)
	defer s.Unlock()
	fn()
}

func defaultAbort(reason string) {
	logFatal(reason)
}
