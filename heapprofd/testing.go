package heapprofd

import (
	"net"
	"sync"

	"github.com/AndrewB330/perfetto/internal/wire"
)

// MockDaemon is an in-process fake collector: it accepts connections on
// a Unix socket, answers every Handshake with a fixed ClientConfiguration,
// and records every Malloc/Free frame it receives. Grounded on the
// teacher's testing.go MockBackend — a hand-rolled fake of the real
// counterpart, with call tracking guarded by a mutex, used directly by
// tests instead of a mocking framework.
type MockDaemon struct {
	Config wire.ClientConfiguration

	listener net.Listener

	mu      sync.Mutex
	mallocs []*wire.Malloc
	frees   []*wire.Free
	closed  bool
}

// NewMockDaemon starts a MockDaemon listening on a Unix socket at path
// and returns it; callers must Close it when done.
func NewMockDaemon(path string, config wire.ClientConfiguration) (*MockDaemon, error) {
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	d := &MockDaemon{Config: config, listener: l}
	go d.acceptLoop()
	return d, nil
}

// Addr returns the socket path the daemon is listening on.
func (d *MockDaemon) Addr() string {
	return d.listener.Addr().String()
}

func (d *MockDaemon) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		go d.serve(conn)
	}
}

func (d *MockDaemon) serve(conn net.Conn) {
	defer conn.Close()

	frame, err := wire.ReadFrame(conn)
	if err != nil {
		return
	}
	if _, ok := frame.(*wire.Handshake); !ok {
		return
	}
	if err := wire.WriteFrame(conn, &d.Config); err != nil {
		return
	}

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		d.mu.Lock()
		switch f := frame.(type) {
		case *wire.Malloc:
			d.mallocs = append(d.mallocs, f)
		case *wire.Free:
			d.frees = append(d.frees, f)
		}
		d.mu.Unlock()
	}
}

// Mallocs returns a snapshot of every Malloc frame received so far.
func (d *MockDaemon) Mallocs() []*wire.Malloc {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*wire.Malloc, len(d.mallocs))
	copy(out, d.mallocs)
	return out
}

// Frees returns a snapshot of every Free frame received so far.
func (d *MockDaemon) Frees() []*wire.Free {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*wire.Free, len(d.frees))
	copy(out, d.frees)
	return out
}

// Close stops accepting connections and removes the socket file.
func (d *MockDaemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	return d.listener.Close()
}
