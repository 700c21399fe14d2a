// Package heapprofd is the client-side runtime of a heap allocation
// profiler: a small, host-embeddable library that samples allocations
// across one or more registered heaps and streams them to a collector
// daemon. It exposes four ABI-stable entry points — InitSession,
// RegisterHeap, ReportAllocation, ReportFree — plus OnForkChild, the
// Go-idiomatic stand-in for a pthread_atfork child handler the host is
// expected to call from its own post-fork path.
//
// The package is an observer: per spec.md §7, the only failure it ever
// escalates is a violated internal invariant (a spinlock held past its
// deadline), and even that tears the process down loudly rather than
// leaving it in a silently corrupt state. Every other failure mode is
// absorbed — logged, counted, and converted into a false/0/no-op return.
package heapprofd

import (
	"sync/atomic"

	"github.com/AndrewB330/perfetto/internal/clientsession"
	"github.com/AndrewB330/perfetto/internal/constants"
	"github.com/AndrewB330/perfetto/internal/heapregistry"
	"github.com/AndrewB330/perfetto/internal/logging"
	"github.com/AndrewB330/perfetto/internal/spinlock"
	"github.com/AndrewB330/perfetto/internal/sysprop"
	"github.com/AndrewB330/perfetto/internal/unhookedalloc"
	"github.com/AndrewB330/perfetto/internal/wire"
)

var (
	spin     spinlock.Spinlock
	registry = heapregistry.New()

	// sessionCell and sessionVal are updated together under spin: the
	// Cell owns the teardown lifecycle, sessionVal is the fast
	// lock-free read path used by the hot ReportAllocation/ReportFree
	// entry points.
	sessionCell atomic.Pointer[unhookedalloc.Cell]
	sessionVal  atomic.Pointer[clientsession.Session]

	// allocator holds the host's validated malloc/free pair for the
	// lifetime of the process once InitSession has run once, so the
	// captured functions stay reachable instead of being validated and
	// discarded (spec.md §4.1).
	allocator atomic.Pointer[unhookedalloc.Allocator]

	forkHandlerInstalled atomic.Bool

	metrics = NewMetrics()
	// observer defaults to recording into the package-level metrics so
	// DefaultMetrics().Snapshot() reflects real traffic out of the box;
	// SetObserver replaces it with a host-supplied sink instead.
	observer Observer = NewMetricsObserver(metrics)

	// centralSocketPath is a var, not the constants.CentralSocketPath
	// constant directly, so tests can point InitSession at a temporary
	// MockDaemon socket instead of the real device-wide path.
	centralSocketPath = constants.CentralSocketPath
)

func init() {
	sessionCell.Store(unhookedalloc.Empty())
}

// forkEmptyCell is the empty cell OnForkChild installs, allocated once up
// front so the post-fork path never constructs a new one.
var forkEmptyCell = unhookedalloc.Empty()

// MallocFunc and FreeFunc are the pair captured from the host at
// InitSession time.
type (
	MallocFunc = unhookedalloc.MallocFunc
	FreeFunc   = unhookedalloc.FreeFunc
)

// HeapInfo is re-exported so callers never need to import the internal
// registry package directly.
type HeapInfo = heapregistry.HeapInfo

// NewHeapInfo builds a HeapInfo for RegisterHeap.
func NewHeapInfo(name string, callback func(enabled bool)) HeapInfo {
	return heapregistry.NewHeapInfo(name, callback)
}

// SetObserver installs an Observer the online core reports events
// through instead of the built-in Metrics. Pass nil to restore the
// default, which records into DefaultMetrics().
func SetObserver(obs Observer) {
	if obs == nil {
		obs = NewMetricsObserver(metrics)
	}
	observer = obs
}

// DefaultMetrics returns the package-level Metrics instance every
// ReportAllocation/ReportFree call updates.
func DefaultMetrics() *Metrics {
	return metrics
}

// CurrentAllocator returns the unhooked allocator validated by the most
// recent InitSession call, or nil if InitSession has never run. Exposed
// so a host can route its own internal scratch allocations through the
// same malloc/free pair it gave the profiler.
func CurrentAllocator() *unhookedalloc.Allocator {
	return allocator.Load()
}

// SetCentralSocketPath overrides the path InitSession dials in central
// mode. The zero value restores the compiled-in default
// (internal/constants.CentralSocketPath). Intended for harnesses and
// tests that run against an in-process daemon rather than the real
// device-wide socket.
func SetCentralSocketPath(path string) {
	if path == "" {
		path = constants.CentralSocketPath
	}
	centralSocketPath = path
}

// InitSession establishes the connection to a collector daemon
// (central or private, per the configured fork mode) and negotiates
// which registered heaps to sample. It returns true if a session is
// active when it returns — including when a concurrent caller already
// raced it to the connect (spec.md §8: "the second call returns true
// without replacing the session").
func InitSession(malloc MallocFunc, free FreeFunc) bool {
	if sessionVal.Load() != nil {
		return true
	}

	// Validated/defaulted per spec.md §4.1 and latched on the package so
	// the captured malloc/free stay reachable for CurrentAllocator
	// instead of being thrown away once validation is done.
	allocator.Store(unhookedalloc.New(malloc, free))

	mode := forkMode()
	sess, err := clientsession.Connect(mode, centralSocketPath, "")
	if err != nil {
		observer.ObserveHandshakeFailure()
		logging.Debug(recordError("InitSession", ErrCodeConnectFailed, err).Error())
		return false
	}
	if sess == nil {
		observer.ObserveHandshakeFailure()
		logging.Debug(recordError("InitSession", ErrCodeHandshakeFailed, nil).Error())
		return false
	}

	installed := false
	spin.WithLock(constants.SpinlockSpinDeadline, func() {
		if sessionVal.Load() != nil {
			return // lost the race; keep the winner's session
		}
		newCell := unhookedalloc.NewCell(func() { sess.ShutdownLazy() })
		old := sessionCell.Swap(newCell)
		old.Release()
		sessionVal.Store(sess)
		installed = true
	})

	if !installed {
		sess.ShutdownLazy()
	} else {
		applyHeapCallbacks(sess)
		installForkHandler()
	}
	return true
}

// RegisterHeap publishes info into the fixed heap table and returns its
// id, or 0 on overflow or a forward-incompatible caller (spec.md §4.3).
func RegisterHeap(info HeapInfo) uint32 {
	id := registry.Register(info)
	if id == 0 {
		code := ErrCodeRegisterOverflow
		if info.StructSize > heapregistry.CurrentStructSize {
			code = ErrCodeForwardIncompatibleInfo
		}
		logging.Debug(recordError("RegisterHeap", code, nil).Error())
	}
	return id
}

// ReportAllocation samples one allocation of size bytes on heapID and,
// if the sampler admits it, forwards a Malloc record to the daemon.
// Returns false whenever nothing was sent: heap not enabled, no active
// session, or the sampler did not admit this allocation.
func ReportAllocation(heapID uint32, allocID uint64, size uint64) bool {
	sess := sessionVal.Load()
	if sess == nil {
		return false
	}
	sess.MaybeImplicitShutdown()

	entry, ok := registry.Get(heapID)
	if !ok || !entry.Enabled.Load() {
		return false
	}

	smp, ok := sess.SamplerFor(entry.ServiceHeapID.Load())
	if !ok {
		return false
	}

	var sampled uint64
	spin.WithLock(constants.SpinlockSpinDeadline, func() {
		sampled = smp.Sample(size)
	})
	if sampled == 0 {
		return false
	}

	frame := &wire.Malloc{
		HeapID:      entry.ServiceHeapID.Load(),
		AllocID:     allocID,
		SampledSize: sampled,
		RawSize:     size,
	}
	if err := sess.Send(frame); err != nil {
		logging.Debug(recordError("ReportAllocation", ErrCodeSocketWriteFailed, err).Error())
		observer.ObserveSocketWriteFailure()
		observer.ObserveLazyShutdown()
		shutdownLazy(sess)
		return false
	}

	observer.ObserveAllocation(entry.ServiceHeapID.Load(), sampled, size)
	return true
}

// ReportFree forwards a Free record for allocID on heapID, if the heap
// is currently enabled and a session is active. Failures are absorbed
// silently, per spec.md §6's void return.
func ReportFree(heapID uint32, allocID uint64) {
	sess := sessionVal.Load()
	if sess == nil {
		return
	}
	sess.MaybeImplicitShutdown()

	entry, ok := registry.Get(heapID)
	if !ok || !entry.Enabled.Load() {
		return
	}

	frame := &wire.Free{HeapID: entry.ServiceHeapID.Load(), AllocID: allocID}
	if err := sess.Send(frame); err != nil {
		logging.Debug(recordError("ReportFree", ErrCodeSocketWriteFailed, err).Error())
		observer.ObserveSocketWriteFailure()
		observer.ObserveLazyShutdown()
		shutdownLazy(sess)
		return
	}
	observer.ObserveFree(entry.ServiceHeapID.Load())
}

// shutdownLazy tears sess down after a failed write and, if it is still
// the installed session, clears the package-level session pointer under
// the spinlock so later entry points see no active session.
func shutdownLazy(sess *clientsession.Session) {
	spin.WithLock(constants.SpinlockSpinDeadline, func() {
		if sessionVal.Load() == sess {
			sessionVal.Store(nil)
			sessionCell.Swap(unhookedalloc.Empty()).Release()
		}
	})
	sess.ShutdownLazy()
}

// OnForkChild must be called by the host from its own post-fork child
// path (Go has no pthread_atfork equivalent to wire this automatically,
// per spec.md §4.7/§9). It force-clears the spinlock, disables every
// enabled heap (firing each callback with false), and leaks the old
// session cell rather than tearing it down — deliberately, since the
// fork may have landed mid-critical-section in the parent and the
// child must never call back into a half-mutated session.
func OnForkChild() {
	spin.Reset()
	recordError("OnForkChild", ErrCodeForkChild, nil)

	registry.Each(func(id uint32, e *heapregistry.Entry) {
		if e.Enabled.CompareAndSwap(true, false) && e.Callback != nil {
			e.Callback(false)
		}
	})

	// Swap in the pre-allocated empty sentinel without releasing the old
	// cell: the old session is deliberately leaked, never shut down.
	sessionCell.Store(forkEmptyCell.Retain())
	sessionVal.Store(nil)
}

func applyHeapCallbacks(sess *clientsession.Session) {
	nameToService := make(map[string]uint32, len(sess.Config.HeapNames))
	for i, name := range sess.Config.HeapNames {
		nameToService[name] = uint32(i + 1)
	}

	registry.Each(func(id uint32, e *heapregistry.Entry) {
		serviceID, wanted := nameToService[e.NameString()]
		wasEnabled := e.Enabled.Load()
		switch {
		case wanted && !wasEnabled:
			e.ServiceHeapID.Store(serviceID)
			e.Enabled.Store(true)
			if e.Callback != nil {
				e.Callback(true)
			}
		case !wanted && wasEnabled:
			e.Enabled.Store(false)
			if e.Callback != nil {
				e.Callback(false)
			}
		}
	})
}

func forkMode() clientsession.Mode {
	value, ok := sysprop.Get(constants.ForkModeProperty)
	if ok && value == constants.ForkModeValue {
		return clientsession.ModePrivate
	}
	return clientsession.ModeCentral
}

func installForkHandler() {
	if forkHandlerInstalled.CompareAndSwap(false, true) {
		logging.Debug("heapprofd: fork handler installed; host must call OnForkChild() post-fork")
	}
}
