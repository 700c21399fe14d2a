package heapregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsMonotonicIDs(t *testing.T) {
	r := New()
	id1 := r.Register(NewHeapInfo("libc.malloc", nil))
	id2 := r.Register(NewHeapInfo("art.heap", nil))

	require.NotZero(t, id1)
	require.NotZero(t, id2)
	assert.Less(t, id1, id2)
	assert.NotEqual(t, id1, id2)
}

func TestRegisterRejectsForwardIncompatibleCaller(t *testing.T) {
	r := New()
	info := NewHeapInfo("future.heap", nil)
	info.StructSize = CurrentStructSize + 1

	assert.Zero(t, r.Register(info))
}

func TestRegisterReturnsZeroOnOverflow(t *testing.T) {
	r := New()
	var last uint32
	for i := 0; i < 300; i++ {
		last = r.Register(NewHeapInfo("heap", nil))
		if last == 0 {
			break
		}
	}
	assert.Zero(t, last)
}

func TestGetReturnsOnlyReadyEntries(t *testing.T) {
	r := New()
	_, ok := r.Get(1)
	assert.False(t, ok, "slot never registered must not be Ready")

	id := r.Register(NewHeapInfo("heap", nil))
	entry, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "heap", entry.NameString())
}

func TestGetRejectsSlotZeroAndOutOfRange(t *testing.T) {
	r := New()
	_, ok := r.Get(0)
	assert.False(t, ok, "slot 0 is reserved")
	_, ok = r.Get(9999)
	assert.False(t, ok)
}

func TestEachVisitsOnlyReadyInAscendingOrder(t *testing.T) {
	r := New()
	r.Register(NewHeapInfo("a", nil))
	r.Register(NewHeapInfo("b", nil))
	r.Register(NewHeapInfo("c", nil))

	var seen []uint32
	r.Each(func(id uint32, e *Entry) { seen = append(seen, id) })

	require.Len(t, seen, 3)
	assert.True(t, seen[0] < seen[1] && seen[1] < seen[2])
}

func TestRegisteredEntryCallbackFiresThroughRegistry(t *testing.T) {
	r := New()
	var lastEnabled bool
	id := r.Register(NewHeapInfo("heap", func(enabled bool) { lastEnabled = enabled }))
	entry, ok := r.Get(id)
	require.True(t, ok)
	entry.Callback(true)
	assert.True(t, lastEnabled)
}
