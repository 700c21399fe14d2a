package heapprofd

import (
	"fmt"
	"sync/atomic"
)

// ErrorCode maps 1:1 onto the "Kind" column of the error-handling table:
// every online-core failure the library can produce falls into exactly
// one of these buckets, and each bucket has one fixed disposition.
type ErrorCode string

const (
	ErrCodeConnectFailed     ErrorCode = "connect-failed"
	ErrCodeHandshakeFailed   ErrorCode = "handshake-failed"
	ErrCodeSocketWriteFailed ErrorCode = "socket-write-failed"
	// ErrCodeSpinlockTimeout is never recorded via recordError: the
	// spinlock package aborts the process directly on timeout (spec.md
	// §7 treats it as a violated invariant, not a recoverable one), so
	// there is no return path left to latch a LastError onto.
	ErrCodeSpinlockTimeout         ErrorCode = "spinlock-timeout"
	ErrCodeForkChild               ErrorCode = "fork-child"
	ErrCodeRegisterOverflow        ErrorCode = "register-overflow"
	ErrCodeForwardIncompatibleInfo ErrorCode = "forward-incompatible-info"
)

// Error is the structured error type this package returns from
// operations that can fail for more than one reason. Op names the
// public entry point that failed; Code is always one of the ErrorCode
// constants above.
type Error struct {
	Op    string
	Code  ErrorCode
	Inner error
}

func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("heapprofd: %s: %s: %v", e.Op, e.Code, e.Inner)
	}
	return fmt.Sprintf("heapprofd: %s: %s", e.Op, e.Code)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports comparison against both a *Error with a matching Code and
// the legacy HeapProfdError string constants below, so callers written
// against either scheme see the behavior they expect.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if legacy, ok := target.(HeapProfdError); ok {
		return string(e.Code) == string(legacy)
	}
	if other, ok := target.(*Error); ok {
		return e.Code == other.Code
	}
	return false
}

// HeapProfdError is a legacy string-based error type kept for callers
// written before Error existed (the teacher carries the same dual
// scheme: a structured *Error alongside an older bare string-constant
// error type, for source compatibility). New code should match on
// Error.Code via errors.As instead.
type HeapProfdError string

func (e HeapProfdError) Error() string {
	return "heapprofd: " + string(e)
}

const (
	ErrConnectFailed   HeapProfdError = HeapProfdError(ErrCodeConnectFailed)
	ErrHandshakeFailed HeapProfdError = HeapProfdError(ErrCodeHandshakeFailed)
	ErrNotInitialized  HeapProfdError = "not initialized"
	ErrSessionTornDown HeapProfdError = "session torn down"
)

// lastError is the diagnostics hook required by spec.md §7: since every
// ABI entry point absorbs failures into a bool/uint32/void return, the
// only way a host can recover the Kind of the last one is to poll this
// latch rather than catch a returned error.
var lastError atomic.Pointer[Error]

// LastError returns the most recently recorded Error from any production
// failure path (InitSession, RegisterHeap, ReportAllocation, ReportFree,
// OnForkChild), or nil if none has been recorded since process start or
// the last resetForTest.
func LastError() *Error {
	return lastError.Load()
}

// recordError builds an Error from op/code/inner, latches it as
// LastError, and returns it so the caller can fold it into the same
// logging.Debug call it already makes for the observer/metrics side of
// the same failure.
func recordError(op string, code ErrorCode, inner error) *Error {
	e := &Error{Op: op, Code: code, Inner: inner}
	lastError.Store(e)
	return e
}
