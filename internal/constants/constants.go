// Package constants holds compile-time tunables shared across the
// heapprofd client runtime.
package constants

import "time"

const (
	// HeapNameSize is the fixed width of a heap name, NUL-padded, per
	// the heap-info ABI (spec §6).
	HeapNameSize = 40

	// MaxHeaps is the fixed capacity of the heap registry. Slot 0 is
	// reserved, so valid ids run from 1 to MaxHeaps-1.
	MaxHeaps = 256

	// DefaultSamplingInterval is used when the daemon's handshake config
	// omits an explicit interval for a heap.
	DefaultSamplingInterval = 128 * 1024

	// SpinlockSpinDeadline bounds how long Lock busy-waits before
	// aborting the process (spec §4.2: "microsecond-scale deadline").
	SpinlockSpinDeadline = 2 * time.Millisecond

	// SocketDeadline bounds handshake and emission I/O (spec §5:
	// "SO_SNDTIMEO/SO_RCVTIMEO set at session creation").
	SocketDeadline = 5 * time.Second

	// CentralSocketPath is the well-known filesystem path of the
	// central daemon's listening socket (spec §4.4, §6).
	CentralSocketPath = "/dev/socket/heapprofd"

	// PrivateDaemonPath is the binary exec'd in private-daemon mode
	// (spec §4.4, §6). Out of scope to implement (spec §1); the client
	// only needs to know how to launch it.
	PrivateDaemonPath = "/system/bin/heapprofd_private"

	// ForkModeProperty is the system-wide property name that selects
	// private-daemon mode (spec §4.4, §6: "one system-wide key").
	ForkModeProperty = "persist.heapprofd.client.mode"

	// ForkModeValue is the property value that selects private-daemon
	// mode; any other value (including unset) tries central first.
	ForkModeValue = "fork"
)
