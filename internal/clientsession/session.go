// Package clientsession builds and tears down the connection to a
// collector daemon: central-socket dial in central mode, socketpair +
// ForkExec of a private daemon in private mode, and the handshake that
// follows either. Grounded on the teacher's internal/ctrl.Controller
// (a constructor that opens a kernel resource and returns (*T, error),
// methods that submit one request and interpret one reply) reapplied to
// a userspace socket instead of an io_uring control fd.
package clientsession

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/AndrewB330/perfetto/internal/constants"
	"github.com/AndrewB330/perfetto/internal/logging"
	"github.com/AndrewB330/perfetto/internal/sampler"
	"github.com/AndrewB330/perfetto/internal/wire"
)

// session state values for Session.state.
const (
	stateConnected int32 = iota
	stateTornDown
)

// Session holds one client's connection to its collector daemon and the
// per-heap sampling state negotiated during the handshake.
type Session struct {
	conn     net.Conn
	Config   wire.ClientConfiguration
	samplers map[uint32]*sampler.Sampler
	mu       sync.Mutex // guards samplers; the session-wide spinlock guards everything else
	state    atomic.Int32
	hostPID  int
}

// Mode selects how a Session is established.
type Mode int

const (
	ModeCentral Mode = iota
	ModePrivate
)

// connectCentral dials the fixed central daemon socket. Per spec.md §4.8,
// a failure to connect is benign — no daemon listening is the common
// case on a device with profiling disabled — so it returns (nil, nil)
// rather than an error, mirroring the teacher's pattern of a distinct
// "no resource, no error" return from a resource factory.
func connectCentral(path string) (*Session, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		logging.Debug("clientsession: resolve central socket path failed: " + err.Error())
		return nil, nil
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		logging.Debug("clientsession: dial central socket failed: " + err.Error())
		return nil, nil
	}
	return newSession(conn), nil
}

// connectPrivate spawns a private per-process daemon over a freshly
// created socketpair, using the lowest-impact process-creation
// primitive available (syscall.ForkExec forks and execs in one step,
// without running any user-registered post-fork hooks, matching
// spec.md §4.4's phrasing).
func connectPrivate(cmdline string) (*Session, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("clientsession: socketpair: %w", err)
	}
	parentFd, childFd := fds[0], fds[1]

	pid := os.Getpid()
	if cmdline == "" {
		cmdline = readSelfCmdline()
	}

	argv := []string{
		constants.PrivateDaemonPath,
		fmt.Sprintf("--exclusive-for-pid=%d", pid),
		fmt.Sprintf("--exclusive-for-cmdline=%s", cmdline),
		fmt.Sprintf("--inherit-socket-fd=%d", 3),
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		unix.Close(parentFd)
		unix.Close(childFd)
		return nil, fmt.Errorf("clientsession: open /dev/null: %w", err)
	}
	defer devNull.Close()

	childPid, err := syscall.ForkExec(constants.PrivateDaemonPath, argv, &syscall.ProcAttr{
		Files: []uintptr{devNull.Fd(), devNull.Fd(), devNull.Fd(), uintptr(childFd)},
	})
	// Parent always closes its copy of the child's fd, whether or not the
	// spawn succeeded.
	unix.Close(childFd)
	if err != nil {
		unix.Close(parentFd)
		return nil, fmt.Errorf("clientsession: fork/exec private daemon: %w", err)
	}

	reapChild(childPid)

	f := os.NewFile(uintptr(parentFd), "heapprofd-private-socket")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("clientsession: wrap private socket: %w", err)
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.SetDeadline(time.Now().Add(constants.SocketDeadline))
	}

	return newSession(conn), nil
}

// reapChild waits for the immediate child non-blockingly, tolerating
// ECHILD (already reaped by a SIGCHLD handler elsewhere in the host).
// The daemon's own double-fork-to-detach is its responsibility, out of
// scope here per spec.md §1 — the client only launches the first hop.
func reapChild(pid int) {
	var ws syscall.WaitStatus
	for i := 0; i < 10; i++ {
		_, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
		if err == nil || err == syscall.ECHILD {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// readSelfCmdline parses /proc/self/cmdline (NUL-delimited argv) and
// returns argv[0], the same split-on-NUL approach used elsewhere in the
// ecosystem for /proc/<pid>/status-style pseudo-files.
func readSelfCmdline() string {
	data, err := os.ReadFile("/proc/self/cmdline")
	if err != nil {
		return ""
	}
	parts := strings.SplitN(string(data), "\x00", 2)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func newSession(conn net.Conn) *Session {
	return &Session{
		conn:     conn,
		samplers: make(map[uint32]*sampler.Sampler),
		hostPID:  os.Getpid(),
	}
}

// Connect establishes a Session using the daemon-discovery mode the
// host's config selects, then performs the handshake. A nil, nil
// return means no daemon was reachable or the handshake failed (both
// benign, per spec.md §4.8); a non-nil error means the private-daemon
// spawn itself failed outright.
func Connect(mode Mode, centralPath, privateCmdline string) (*Session, error) {
	var s *Session
	var err error

	switch mode {
	case ModePrivate:
		s, err = connectPrivate(privateCmdline)
	default:
		s, err = connectCentral(centralPath)
	}
	if err != nil || s == nil {
		return nil, err
	}

	cfg, err := handshake(s.conn)
	if err != nil {
		s.conn.Close()
		logging.Warn("clientsession: handshake failed: " + err.Error())
		return nil, nil
	}
	s.Config = cfg
	for i, name := range cfg.HeapNames {
		interval := constants.DefaultSamplingInterval
		if i < len(cfg.SamplingIntervals) {
			interval = cfg.SamplingIntervals[i]
		}
		s.samplers[uint32(i+1)] = sampler.New(interval)
		_ = name
	}
	return s, nil
}

// handshake writes a Handshake frame carrying a fresh process-lifetime
// identity nonce, then reads the daemon's ClientConfiguration reply
// within a bounded deadline. Partial failures are not retried, per
// spec.md §4.4 verbatim.
func handshake(conn net.Conn) (wire.ClientConfiguration, error) {
	_ = conn.SetDeadline(time.Now().Add(constants.SocketDeadline))
	defer conn.SetDeadline(time.Time{})

	id := uuid.New()
	hs := &wire.Handshake{PID: int32(os.Getpid())}
	copy(hs.ClientID[:], id[:])

	if err := wire.WriteFrame(conn, hs); err != nil {
		return wire.ClientConfiguration{}, fmt.Errorf("clientsession: write handshake: %w", err)
	}

	frame, err := wire.ReadFrame(conn)
	if err != nil {
		return wire.ClientConfiguration{}, fmt.Errorf("clientsession: read configuration: %w", err)
	}
	cfg, ok := frame.(*wire.ClientConfiguration)
	if !ok {
		return wire.ClientConfiguration{}, fmt.Errorf("clientsession: unexpected frame in handshake reply")
	}
	return *cfg, nil
}

// SamplerFor returns the sampler negotiated for serviceHeapID, if any.
func (s *Session) SamplerFor(serviceHeapID uint32) (*sampler.Sampler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	smp, ok := s.samplers[serviceHeapID]
	return smp, ok
}

// Send writes one Malloc or Free frame to the daemon. A write failure
// is the hot-path "socket-write-failed" kind from spec.md §7: the
// caller is expected to respond with a lazy shutdown, not a retry.
func (s *Session) Send(frame any) error {
	if s.state.Load() == stateTornDown {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(constants.SocketDeadline))
	return wire.WriteFrame(s.conn, frame)
}

// ShutdownLazy tears the session down once, idempotently: subsequent
// Send calls become no-ops (spec.md §8: "subsequent report_* calls
// emit nothing").
func (s *Session) ShutdownLazy() {
	if !s.state.CompareAndSwap(stateConnected, stateTornDown) {
		return
	}
	s.conn.Close()
}

// MaybeImplicitShutdown compares the live pid against the pid captured
// at connect time, catching clone/vfork children that never ran the
// explicit post-fork handler — a best-effort backstop per spec.md §4.7.
func (s *Session) MaybeImplicitShutdown() {
	if os.Getpid() != s.hostPID {
		s.ShutdownLazy()
	}
}
