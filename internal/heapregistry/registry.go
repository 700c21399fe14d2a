// Package heapregistry implements the fixed-capacity, append-only table of
// registered heaps described in spec §4.3. Registration is the only
// operation that can race with itself: the next-id counter is an atomic
// fetch-add, and slots are never rewritten once claimed, so a reader that
// observes Ready sees a fully initialized entry (spec §8: "no two
// successful register_heap calls return the same id").
package heapregistry

import (
	"sync/atomic"

	"github.com/AndrewB330/perfetto/internal/constants"
)

// CurrentStructSize is the size, in bytes, of the heap-info struct this
// build of the library understands. A caller passing a larger size is
// newer than the library and is rejected (spec §4.3, §4.8).
const CurrentStructSize = constants.HeapNameSize + 8 // name + callback-present flag + padding

// HeapInfo is the ABI-facing struct a host passes to Register. New fields
// may only be appended (spec §6); StructSize records how much of it the
// caller actually populated.
type HeapInfo struct {
	Name       [constants.HeapNameSize]byte
	Callback   func(enabled bool)
	StructSize uintptr
}

// NewHeapInfo builds a HeapInfo from a Go string name, NUL-padding or
// truncating to the fixed width.
func NewHeapInfo(name string, callback func(bool)) HeapInfo {
	var info HeapInfo
	copy(info.Name[:], name)
	info.Callback = callback
	info.StructSize = CurrentStructSize
	return info
}

// NameString returns the heap name as a Go string, trimmed at the first NUL.
func (h HeapInfo) NameString() string {
	return nameString(h.Name[:])
}

func nameString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Entry is one published heap registration. Once Ready is set, Name and
// Callback never change (spec §3 invariants).
type Entry struct {
	Name          [constants.HeapNameSize]byte
	Callback      func(enabled bool)
	Ready         atomic.Bool
	Enabled       atomic.Bool
	ServiceHeapID atomic.Uint32
}

// NameString returns the entry's name as a Go string.
func (e *Entry) NameString() string {
	return nameString(e.Name[:])
}

// Registry is the fixed 256-slot heap table. Slot 0 is reserved; valid ids
// run from 1 to MaxHeaps-1 (spec §3, §8).
type Registry struct {
	slots  [constants.MaxHeaps]Entry
	nextID atomic.Uint32
}

// New returns an empty Registry with the next id primed at 1.
func New() *Registry {
	r := &Registry{}
	r.nextID.Store(1)
	return r
}

// Register copies the caller's heap info into a freshly claimed slot and
// returns its id, or 0 on overflow or a forward-incompatible StructSize
// (spec §4.3, §4.8).
func (r *Registry) Register(info HeapInfo) uint32 {
	if info.StructSize > CurrentStructSize {
		return 0 // caller is newer than this library
	}

	id := r.nextID.Add(1) - 1
	if id == 0 || id >= constants.MaxHeaps {
		return 0 // array exhausted
	}

	slot := &r.slots[id]
	slot.Name = info.Name
	slot.Callback = info.Callback

	// Publish last: readers that observe Ready must see a fully
	// initialized entry (spec §4.3).
	slot.Ready.Store(true)
	return id
}

// Get returns the entry for id if it has ever been registered.
func (r *Registry) Get(id uint32) (*Entry, bool) {
	if id == 0 || id >= constants.MaxHeaps {
		return nil, false
	}
	e := &r.slots[id]
	if !e.Ready.Load() {
		return nil, false
	}
	return e, true
}

// Each walks every Ready entry, in ascending id order.
func (r *Registry) Each(fn func(id uint32, e *Entry)) {
	for id := uint32(1); id < constants.MaxHeaps; id++ {
		e := &r.slots[id]
		if e.Ready.Load() {
			fn(id, e)
		}
	}
}
