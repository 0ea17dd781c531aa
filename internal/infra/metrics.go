package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	scanTicks       atomic.Uint64
	ordersExecuted  atomic.Uint64
	ordersCancelled atomic.Uint64
	lockSkips       atomic.Uint64
	priceMisses     atomic.Uint64
	batchTimeouts   atomic.Uint64
	errorsTotal     atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordScanTick records one scheduler pass with its latency.
func (m *Metrics) RecordScanTick(latencyNs int64) {
	m.scanTicks.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordOrderExecuted records a filled order.
func (m *Metrics) RecordOrderExecuted() {
	m.ordersExecuted.Add(1)
}

// RecordOrderCancelled records an order cancelled at execution time.
func (m *Metrics) RecordOrderCancelled() {
	m.ordersCancelled.Add(1)
}

// RecordLockSkip records an order deferred due to member lock contention.
func (m *Metrics) RecordLockSkip() {
	m.lockSkips.Add(1)
}

// RecordPriceMiss records an evaluation deferred for lack of a quote.
func (m *Metrics) RecordPriceMiss() {
	m.priceMisses.Add(1)
}

// RecordBatchTimeout records a scan that hit the batch wait limit.
func (m *Metrics) RecordBatchTimeout() {
	m.batchTimeouts.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	ScanTicks       uint64
	OrdersExecuted  uint64
	OrdersCancelled uint64
	LockSkips       uint64
	PriceMisses     uint64
	BatchTimeouts   uint64
	ErrorsTotal     uint64
	AvgLatencyNs    int64
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		ScanTicks:       m.scanTicks.Load(),
		OrdersExecuted:  m.ordersExecuted.Load(),
		OrdersCancelled: m.ordersCancelled.Load(),
		LockSkips:       m.lockSkips.Load(),
		PriceMisses:     m.priceMisses.Load(),
		BatchTimeouts:   m.batchTimeouts.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		AvgLatencyNs:    avgLatency,
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.scanTicks.Store(0)
	m.ordersExecuted.Store(0)
	m.ordersCancelled.Store(0)
	m.lockSkips.Store(0)
	m.priceMisses.Store(0)
	m.batchTimeouts.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
}
