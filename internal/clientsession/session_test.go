package clientsession

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewB330/perfetto/internal/wire"
)

// fakeDaemon reads one Handshake frame off conn and replies with cfg.
func fakeDaemon(t *testing.T, conn net.Conn, cfg wire.ClientConfiguration) {
	t.Helper()
	frame, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	_, ok := frame.(*wire.Handshake)
	require.True(t, ok)
	require.NoError(t, wire.WriteFrame(conn, &cfg))
}

func TestHandshakeNegotiatesConfiguration(t *testing.T) {
	client, daemon := net.Pipe()
	defer daemon.Close()

	cfg := wire.ClientConfiguration{
		HeapNames:         []string{"libc.malloc"},
		SamplingIntervals: []uint64{4096},
	}
	go fakeDaemon(t, daemon, cfg)

	got, err := handshake(client)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSendNoOpsAfterShutdownLazy(t *testing.T) {
	client, daemon := net.Pipe()
	defer daemon.Close()

	s := newSession(client)

	done := make(chan struct{})
	go func() {
		wire.ReadFrame(daemon)
		close(done)
	}()
	require.NoError(t, s.Send(&wire.Free{HeapID: 1, AllocID: 1}))
	<-done

	s.ShutdownLazy()
	assert.NoError(t, s.Send(&wire.Free{HeapID: 1, AllocID: 2}), "Send after shutdown must be a no-op, not an error")
}

func TestShutdownLazyIsIdempotent(t *testing.T) {
	client, daemon := net.Pipe()
	defer daemon.Close()

	s := newSession(client)
	assert.NotPanics(t, func() {
		s.ShutdownLazy()
		s.ShutdownLazy()
	})
}

func TestSamplerForReturnsNegotiatedSampler(t *testing.T) {
	s := newSession(nil)
	s.samplers[1] = nil // presence is what's tested, not the sampler's identity
	_, ok := s.SamplerFor(1)
	assert.True(t, ok)
	_, ok = s.SamplerFor(2)
	assert.False(t, ok)
}

func TestConnectCentralReturnsNilNilWhenNothingListens(t *testing.T) {
	s, err := connectCentral("/nonexistent/heapprofd/socket/path")
	assert.NoError(t, err)
	assert.Nil(t, s, "no daemon listening must be a benign empty session, not an error")
}
