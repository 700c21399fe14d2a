// Package wire implements the framed protocol spoken between a client
// session and its collector daemon: a 4-byte little-endian length
// prefix, a 1-byte frame-type tag, and a manually encoding/binary
// marshaled payload. The type-switch dispatch and hand-rolled
// marshal/unmarshal functions mirror the teacher's internal/uapi/marshal.go
// treatment of its own fixed-layout control structs.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// FrameType tags the payload that follows the length prefix.
type FrameType uint8

const (
	FrameHandshake FrameType = iota + 1
	FrameClientConfiguration
	FrameMalloc
	FrameFree
)

// ErrShortFrame is returned when a frame's declared length does not fit
// the bytes actually available, or a payload is too small for its type.
var ErrShortFrame = errors.New("wire: short frame")

// maxFrameLen bounds a single frame's payload to guard against a
// corrupt or hostile length prefix driving an unbounded allocation.
const maxFrameLen = 16 << 20

// Handshake is the first frame a client sends: a stable per-process
// identity nonce plus its pid, so the daemon can correlate the client
// across a SIGSTOP/resume without relying on pid-reuse protection.
type Handshake struct {
	ClientID [16]byte // raw bytes of a github.com/google/uuid.UUID
	PID      int32
}

// ClientConfiguration is the daemon's reply to a Handshake: the set of
// heap names it wants sampled and the per-heap sampling interval to use
// for each, as parallel arrays.
type ClientConfiguration struct {
	HeapNames         []string
	SamplingIntervals []uint64
}

// Malloc reports one sampled allocation.
type Malloc struct {
	HeapID      uint32
	AllocID     uint64
	SampledSize uint64
	RawSize     uint64
}

// Free reports one freed allocation.
type Free struct {
	HeapID  uint32
	AllocID uint64
}

// frameParts type-switches v to its tag and marshaled payload, shared by
// Marshal (which hands the result to a caller that keeps it) and
// WriteFrame (which only needs it for the lifetime of one Write).
func frameParts(v any) (FrameType, []byte, error) {
	switch val := v.(type) {
	case *Handshake:
		return FrameHandshake, marshalHandshake(val), nil
	case *ClientConfiguration:
		return FrameClientConfiguration, marshalClientConfiguration(val), nil
	case *Malloc:
		return FrameMalloc, marshalMalloc(val), nil
	case *Free:
		return FrameFree, marshalFree(val), nil
	default:
		return 0, nil, errors.New("wire: unsupported frame type")
	}
}

// Marshal encodes v as a length-prefixed, type-tagged frame.
func Marshal(v any) ([]byte, error) {
	tag, payload, err := frameParts(v)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+1+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(tag)
	copy(buf[5:], payload)
	return buf, nil
}

// WriteFrame marshals v and writes it to w in one call. The framed buffer
// is drawn from the package's size-bucketed pool and returned before
// WriteFrame returns, since its lifetime never needs to outlast the Write.
func WriteFrame(w io.Writer, v any) error {
	tag, payload, err := frameParts(v)
	if err != nil {
		return err
	}

	total := 4 + 1 + len(payload)
	buf := GetBuffer(total)
	defer PutBuffer(buf)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(tag)
	copy(buf[5:], payload)
	_, err = w.Write(buf[:total])
	return err
}

// ReadFrame reads one length-prefixed frame from r and decodes it into
// the concrete type its tag indicates, returning it as `any`
// (*Handshake, *ClientConfiguration, *Malloc, or *Free).
func ReadFrame(r io.Reader) (any, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n < 1 || n > maxFrameLen {
		return nil, ErrShortFrame
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	tag := FrameType(body[0])
	payload := body[1:]

	switch tag {
	case FrameHandshake:
		return unmarshalHandshake(payload)
	case FrameClientConfiguration:
		return unmarshalClientConfiguration(payload)
	case FrameMalloc:
		return unmarshalMalloc(payload)
	case FrameFree:
		return unmarshalFree(payload)
	default:
		return nil, errors.New("wire: unknown frame type")
	}
}

func marshalHandshake(h *Handshake) []byte {
	buf := make([]byte, 16+4)
	copy(buf[0:16], h.ClientID[:])
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.PID))
	return buf
}

func unmarshalHandshake(data []byte) (*Handshake, error) {
	if len(data) < 20 {
		return nil, ErrShortFrame
	}
	h := &Handshake{}
	copy(h.ClientID[:], data[0:16])
	h.PID = int32(binary.LittleEndian.Uint32(data[16:20]))
	return h, nil
}

func marshalMalloc(m *Malloc) []byte {
	buf := make([]byte, 4+8+8+8)
	binary.LittleEndian.PutUint32(buf[0:4], m.HeapID)
	binary.LittleEndian.PutUint64(buf[4:12], m.AllocID)
	binary.LittleEndian.PutUint64(buf[12:20], m.SampledSize)
	binary.LittleEndian.PutUint64(buf[20:28], m.RawSize)
	return buf
}

func unmarshalMalloc(data []byte) (*Malloc, error) {
	if len(data) < 28 {
		return nil, ErrShortFrame
	}
	return &Malloc{
		HeapID:      binary.LittleEndian.Uint32(data[0:4]),
		AllocID:     binary.LittleEndian.Uint64(data[4:12]),
		SampledSize: binary.LittleEndian.Uint64(data[12:20]),
		RawSize:     binary.LittleEndian.Uint64(data[20:28]),
	}, nil
}

func marshalFree(f *Free) []byte {
	buf := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(buf[0:4], f.HeapID)
	binary.LittleEndian.PutUint64(buf[4:12], f.AllocID)
	return buf
}

func unmarshalFree(data []byte) (*Free, error) {
	if len(data) < 12 {
		return nil, ErrShortFrame
	}
	return &Free{
		HeapID:  binary.LittleEndian.Uint32(data[0:4]),
		AllocID: binary.LittleEndian.Uint64(data[4:12]),
	}, nil
}

// marshalClientConfiguration uses a count-prefixed repeated-field layout
// since, unlike the other frames, its payload is variable-length: a
// uint32 count, then that many NUL-free length-prefixed strings, then
// that many uint64 intervals in the same order.
func marshalClientConfiguration(c *ClientConfiguration) []byte {
	n := len(c.HeapNames)
	size := 4
	for _, name := range c.HeapNames {
		size += 4 + len(name)
	}
	size += 8 * n

	buf := make([]byte, size)
	offset := 0
	binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(n))
	offset += 4
	for _, name := range c.HeapNames {
		binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(len(name)))
		offset += 4
		copy(buf[offset:], name)
		offset += len(name)
	}
	for i := 0; i < n; i++ {
		var interval uint64
		if i < len(c.SamplingIntervals) {
			interval = c.SamplingIntervals[i]
		}
		binary.LittleEndian.PutUint64(buf[offset:offset+8], interval)
		offset += 8
	}
	return buf
}

func unmarshalClientConfiguration(data []byte) (*ClientConfiguration, error) {
	if len(data) < 4 {
		return nil, ErrShortFrame
	}
	n := binary.LittleEndian.Uint32(data[0:4])
	offset := 4

	names := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		if offset+4 > len(data) {
			return nil, ErrShortFrame
		}
		l := binary.LittleEndian.Uint32(data[offset : offset+4])
		offset += 4
		if offset+int(l) > len(data) {
			return nil, ErrShortFrame
		}
		names = append(names, string(data[offset:offset+int(l)]))
		offset += int(l)
	}

	intervals := make([]uint64, 0, n)
	for i := uint32(0); i < n; i++ {
		if offset+8 > len(data) {
			return nil, ErrShortFrame
		}
		intervals = append(intervals, binary.LittleEndian.Uint64(data[offset:offset+8]))
		offset += 8
	}

	return &ClientConfiguration{HeapNames: names, SamplingIntervals: intervals}, nil
}
