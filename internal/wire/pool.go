package wire

import "sync"

// Buffer pooling for frame encode/decode scratch space. Adapted from the
// teacher's size-bucketed sync.Pool (internal/queue/pool.go), scaled down
// to the much smaller frame sizes this protocol actually produces (a
// Malloc/Free/Handshake frame is a few dozen bytes; ClientConfiguration
// is the only frame with unbounded size, bucketed into the top tier).
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.
const (
	size256  = 256
	size4k   = 4 * 1024
	size64k  = 64 * 1024
)

var globalPool = struct {
	pool256 sync.Pool
	pool4k  sync.Pool
	pool64k sync.Pool
}{
	pool256: sync.Pool{New: func() any { b := make([]byte, size256); return &b }},
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// GetBuffer returns a buffer of exactly the requested size, drawn from
// the pooled bucket it fits in. A size larger than every bucket (a
// ClientConfiguration naming many heaps) falls back to a plain
// allocation; PutBuffer drops those rather than pooling them.
func GetBuffer(size int) []byte {
	switch {
	case size <= size256:
		return (*globalPool.pool256.Get().(*[]byte))[:size]
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool it was drawn from, keyed by
// capacity. Non-standard capacities (e.g. a buffer larger than size64k)
// are dropped rather than pooled.
func PutBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size256:
		globalPool.pool256.Put(&buf)
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	}
}
