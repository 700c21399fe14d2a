package heapprofd

import (
	"github.com/AndrewB330/perfetto/internal/constants"
	"github.com/AndrewB330/perfetto/internal/heapregistry"
	"github.com/AndrewB330/perfetto/internal/unhookedalloc"
)

// resetForTest clears every package-level global so tests don't bleed
// state into each other. Package-level state mutated by InitSession/
// RegisterHeap/OnForkChild is otherwise process-global, matching the
// real library's single-instance contract (spec.md §3).
func resetForTest() {
	sessionVal.Store(nil)
	sessionCell.Store(unhookedalloc.Empty())
	allocator.Store(nil)
	registry = heapregistry.New()
	forkHandlerInstalled.Store(false)
	metrics = NewMetrics()
	observer = NewMetricsObserver(metrics)
	lastError.Store(nil)
	centralSocketPath = constants.CentralSocketPath
}
