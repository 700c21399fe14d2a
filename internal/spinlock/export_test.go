package spinlock

// SetAbortForTest swaps the abort hook for the duration of a test and
// returns a restore func. Kept in an export_test.go file (not built into
// the library) so production code can never be pointed at a no-op abort.
func SetAbortForTest(fn func(string)) (restore func()) {
	prev := abort
	abort = fn
	return func() { abort = prev }
}
