package heapprofd

import "sync/atomic"

// Metrics tracks operational counters for the online core. It is the
// in-process counter set a host can snapshot directly; it is
// deliberately not a Prometheus exporter, since there is no HTTP
// surface inside an arbitrary host process to scrape from (see
// DESIGN.md).
type Metrics struct {
	BytesSampled        atomic.Uint64
	AllocationsReported atomic.Uint64
	FreesReported       atomic.Uint64
	HandshakeFailures   atomic.Uint64
	SocketWriteFailures atomic.Uint64
	LazyShutdowns       atomic.Uint64
	DroppedPackets      atomic.Uint64
	DroppedFrames       atomic.Uint64
}

// NewMetrics returns a freshly zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to pass
// around and print without further synchronization.
type MetricsSnapshot struct {
	BytesSampled        uint64
	AllocationsReported uint64
	FreesReported       uint64
	HandshakeFailures   uint64
	SocketWriteFailures uint64
	LazyShutdowns       uint64
	DroppedPackets      uint64
	DroppedFrames       uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BytesSampled:        m.BytesSampled.Load(),
		AllocationsReported: m.AllocationsReported.Load(),
		FreesReported:       m.FreesReported.Load(),
		HandshakeFailures:   m.HandshakeFailures.Load(),
		SocketWriteFailures: m.SocketWriteFailures.Load(),
		LazyShutdowns:       m.LazyShutdowns.Load(),
		DroppedPackets:      m.DroppedPackets.Load(),
		DroppedFrames:       m.DroppedFrames.Load(),
	}
}

// Observer allows pluggable collection of online-core events, mirroring
// the way a host might wire its own stats sink alongside or instead of
// Metrics.
type Observer interface {
	ObserveAllocation(heapID uint32, sampledSize, rawSize uint64)
	ObserveFree(heapID uint32)
	ObserveHandshakeFailure()
	ObserveSocketWriteFailure()
	ObserveLazyShutdown()
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAllocation(uint32, uint64, uint64) {}
func (NoOpObserver) ObserveFree(uint32)                       {}
func (NoOpObserver) ObserveHandshakeFailure()                 {}
func (NoOpObserver) ObserveSocketWriteFailure()               {}
func (NoOpObserver) ObserveLazyShutdown()                     {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAllocation(heapID uint32, sampledSize, rawSize uint64) {
	o.metrics.AllocationsReported.Add(1)
	o.metrics.BytesSampled.Add(sampledSize)
}

func (o *MetricsObserver) ObserveFree(heapID uint32) {
	o.metrics.FreesReported.Add(1)
}

func (o *MetricsObserver) ObserveHandshakeFailure() {
	o.metrics.HandshakeFailures.Add(1)
}

func (o *MetricsObserver) ObserveSocketWriteFailure() {
	o.metrics.SocketWriteFailures.Add(1)
}

func (o *MetricsObserver) ObserveLazyShutdown() {
	o.metrics.LazyShutdowns.Add(1)
}
