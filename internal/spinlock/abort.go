package spinlock

import (
	"log"
	"os"
)

// logFatal logs the abort reason and terminates the process.
//
// The C++ original calls abort(3) to raise SIGABRT. Go cannot portably
// raise SIGABRT from a library without cgo, so this preserves the
// supervisor-visible exit-code convention (128+SIGABRT) instead (see
// DESIGN.md / SPEC_FULL.md §9).
func logFatal(reason string) {
	log.Printf("heapprofd: fatal: %s", reason)
	os.Exit(134)
}
