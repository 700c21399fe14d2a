// Package unhookedalloc models the C++ client's "unhooked allocator"
// requirement in Go terms. The original requires every internal
// allocation to bypass the host's malloc hooks, to avoid recursive
// re-entry into the very instrumentation that triggered the allocation.
// Go has no comparable malloc-hooking seam: the runtime allocator cannot
// be swapped out from a library. The property actually worth preserving
// is the one the invariant protects, not the literal mechanism — so this
// package gives InitSession's captured allocator function pointers a
// home (Allocator) and provides Cell, an ownership primitive that never
// calls back into Allocator.Free from an arbitrary goroutine.
package unhookedalloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/AndrewB330/perfetto/internal/logging"
)

// MallocFunc and FreeFunc are the two function pointers a host passes to
// InitSession — the Go stand-in for the captured, pre-hook malloc/free
// the C++ client squirrels away before installing its own hooks.
type MallocFunc func(size uintptr) unsafe.Pointer
type FreeFunc func(ptr unsafe.Pointer)

// Allocator wraps a host's captured malloc/free pair. A nil function is
// replaced with a default backed by Go's own allocator, which defeats the
// whole point of "unhooked" — so that substitution is logged as a
// warning rather than silently accepted. A real host always supplies
// both.
type Allocator struct {
	malloc MallocFunc
	free   FreeFunc
}

// New builds an Allocator from a host's captured functions.
func New(malloc MallocFunc, free FreeFunc) *Allocator {
	a := &Allocator{malloc: malloc, free: free}
	if malloc == nil {
		logging.Warn("unhookedalloc: host passed nil malloc, falling back to runtime allocator")
		a.malloc = defaultMalloc
	}
	if free == nil {
		logging.Warn("unhookedalloc: host passed nil free, falling back to runtime allocator")
		a.free = defaultFree
	}
	return a
}

func defaultMalloc(size uintptr) unsafe.Pointer {
	b := make([]byte, size)
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func defaultFree(ptr unsafe.Pointer) {
	// Go's GC reclaims the backing array; nothing to do. Kept as a
	// distinct symbol so Allocator.Free always has something to call.
}

// Malloc allocates size bytes through the captured allocator.
func (a *Allocator) Malloc(size uintptr) unsafe.Pointer {
	return a.malloc(size)
}

// Free releases ptr through the captured allocator.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	a.free(ptr)
}

// Cell is a manually reference-counted ownership cell. It exists to hold
// the shared *clientsession.Session behind the package-level session
// pointer without ever calling back into an Allocator.Free from whatever
// goroutine happens to drop the last reference — that re-entrancy, not
// the allocation itself, is the property spec.md's "unhooked" invariant
// actually protects against in a runtime with a GC.
type Cell struct {
	refcount atomic.Int32
	destroy  func()
}

// NewCell returns a cell holding one reference, calling destroy when the
// last reference is released. destroy may be nil for an empty/sentinel cell.
func NewCell(destroy func()) *Cell {
	c := &Cell{destroy: destroy}
	c.refcount.Store(1)
	return c
}

// Empty returns a cell holding nothing, with no destructor — used by the
// fork-child handler to replace a live session cell without ever
// touching the old one (spec.md §4.7: the old reference is deliberately
// leaked, never torn down).
func Empty() *Cell {
	return NewCell(nil)
}

// Retain increments the reference count and returns c, for callers that
// need to extend the cell's lifetime past the scope that looked it up.
func (c *Cell) Retain() *Cell {
	c.refcount.Add(1)
	return c
}

// Release decrements the reference count, invoking destroy exactly once
// when it reaches zero. Releasing an already-released cell panics.
func (c *Cell) Release() {
	n := c.refcount.Add(-1)
	if n < 0 {
		panic("unhookedalloc: Cell released more times than retained")
	}
	if n == 0 && c.destroy != nil {
		c.destroy()
	}
}
