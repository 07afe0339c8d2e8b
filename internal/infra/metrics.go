package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Feed counters
	messagesApplied atomic.Uint64
	snapshots       atomic.Uint64
	resyncs         atomic.Uint64
	dropped         atomic.Uint64
	trades          atomic.Uint64

	// Execution counters
	ordersPlaced    atomic.Uint64
	ordersCancelled atomic.Uint64

	errorsTotal atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordApplied records a message applied to the book with its latency.
func (m *Metrics) RecordApplied(latencyNs int64, trades int) {
	m.messagesApplied.Add(1)
	m.trades.Add(uint64(trades))
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordSnapshot records an applied snapshot.
func (m *Metrics) RecordSnapshot() {
	m.snapshots.Add(1)
}

// RecordResync records a resynchronization request.
func (m *Metrics) RecordResync() {
	m.resyncs.Add(1)
}

// RecordDropped records an update discarded while waiting for a snapshot.
func (m *Metrics) RecordDropped() {
	m.dropped.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordOrderPlaced records an order accepted by the exchange.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderCancelled records a successful cancellation.
func (m *Metrics) RecordOrderCancelled() {
	m.ordersCancelled.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	MessagesApplied   uint64
	Snapshots         uint64
	Resyncs           uint64
	Dropped           uint64
	Trades            uint64
	OrdersPlaced      uint64
	OrdersCancelled   uint64
	ErrorsTotal       uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		MessagesApplied:   m.messagesApplied.Load(),
		Snapshots:         m.snapshots.Load(),
		Resyncs:           m.resyncs.Load(),
		Dropped:           m.dropped.Load(),
		Trades:            m.trades.Load(),
		OrdersPlaced:      m.ordersPlaced.Load(),
		OrdersCancelled:   m.ordersCancelled.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.messagesApplied.Store(0)
	m.snapshots.Store(0)
	m.resyncs.Store(0)
	m.dropped.Store(0)
	m.trades.Store(0)
	m.ordersPlaced.Store(0)
	m.ordersCancelled.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}
