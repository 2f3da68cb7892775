// Package metrics provides observability primitives for the handshake
// driver library.
//
// The package includes:
//   - a Collector of handshake counters with a Prometheus text exporter
//   - duration histograms
//   - a Tracer interface with an OpenTelemetry adapter (build tag "otel")
//   - structured logging with levels
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics across handshake connections.
type Collector struct {
	// Handshake lifecycle
	handshakesStarted   atomic.Uint64
	handshakesCompleted atomic.Uint64
	handshakesFailed    atomic.Uint64
	handshakeDuration   *Histogram

	// Record traffic
	recordsRead    atomic.Uint64
	recordsWritten atomic.Uint64
	bytesRead      atomic.Uint64
	bytesWritten   atomic.Uint64

	// Driver behavior
	fragmentedMessages atomic.Uint64
	readSuspensions    atomic.Uint64
	writeSuspensions   atomic.Uint64

	// Peer behavior
	alertsReceived atomic.Uint64
	protocolErrors atomic.Uint64
	sslv2Compat    atomic.Uint64

	createdAt time.Time
	labels    Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// HandshakeDurationBuckets are the histogram bounds for handshake duration
// in milliseconds.
var HandshakeDurationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}
	return &Collector{
		handshakeDuration: NewHistogram(HandshakeDurationBuckets),
		createdAt:         time.Now(),
		labels:            labels,
	}
}

// --- Handshake lifecycle ---

// HandshakeStarted counts a new negotiation.
func (c *Collector) HandshakeStarted() {
	c.handshakesStarted.Add(1)
}

// HandshakeCompleted counts a negotiation that reached HANDSHAKE_OVER and
// records its duration.
func (c *Collector) HandshakeCompleted(d time.Duration) {
	c.handshakesCompleted.Add(1)
	c.handshakeDuration.Observe(float64(d.Milliseconds()))
}

// HandshakeFailed counts a fatally failed negotiation.
func (c *Collector) HandshakeFailed() {
	c.handshakesFailed.Add(1)
}

// --- Record traffic ---

// RecordRead counts one inbound record of n payload bytes.
func (c *Collector) RecordRead(n int) {
	c.recordsRead.Add(1)
	c.bytesRead.Add(uint64(n))
}

// RecordWritten counts one outbound record of n payload bytes.
func (c *Collector) RecordWritten(n int) {
	c.recordsWritten.Add(1)
	c.bytesWritten.Add(uint64(n))
}

// --- Driver behavior ---

// MessageFragmented counts a handshake message that spanned records.
func (c *Collector) MessageFragmented() {
	c.fragmentedMessages.Add(1)
}

// ReadSuspended counts a BLOCKED_ON_READ suspension.
func (c *Collector) ReadSuspended() {
	c.readSuspensions.Add(1)
}

// WriteSuspended counts a BLOCKED_ON_WRITE suspension.
func (c *Collector) WriteSuspended() {
	c.writeSuspensions.Add(1)
}

// --- Peer behavior ---

// AlertReceived counts an inbound alert.
func (c *Collector) AlertReceived() {
	c.alertsReceived.Add(1)
}

// ProtocolError counts a wire-level protocol violation by the peer.
func (c *Collector) ProtocolError() {
	c.protocolErrors.Add(1)
}

// SSLv2Compat counts an SSLv2-framed ClientHello.
func (c *Collector) SSLv2Compat() {
	c.sslv2Compat.Add(1)
}

// --- Snapshot ---

// Snapshot is a point-in-time view of all counters.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	HandshakesStarted   uint64
	HandshakesCompleted uint64
	HandshakesFailed    uint64

	RecordsRead    uint64
	RecordsWritten uint64
	BytesRead      uint64
	BytesWritten   uint64

	FragmentedMessages uint64
	ReadSuspensions    uint64
	WriteSuspensions   uint64

	AlertsReceived uint64
	ProtocolErrors uint64
	SSLv2Compat    uint64

	HandshakeDuration HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.createdAt),
		HandshakesStarted:   c.handshakesStarted.Load(),
		HandshakesCompleted: c.handshakesCompleted.Load(),
		HandshakesFailed:    c.handshakesFailed.Load(),
		RecordsRead:         c.recordsRead.Load(),
		RecordsWritten:      c.recordsWritten.Load(),
		BytesRead:           c.bytesRead.Load(),
		BytesWritten:        c.bytesWritten.Load(),
		FragmentedMessages:  c.fragmentedMessages.Load(),
		ReadSuspensions:     c.readSuspensions.Load(),
		WriteSuspensions:    c.writeSuspensions.Load(),
		AlertsReceived:      c.alertsReceived.Load(),
		ProtocolErrors:      c.protocolErrors.Load(),
		SSLv2Compat:         c.sslv2Compat.Load(),
		HandshakeDuration:   c.handshakeDuration.Summary(),
		Labels:              c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.handshakesStarted.Store(0)
	c.handshakesCompleted.Store(0)
	c.handshakesFailed.Store(0)
	c.recordsRead.Store(0)
	c.recordsWritten.Store(0)
	c.bytesRead.Store(0)
	c.bytesWritten.Store(0)
	c.fragmentedMessages.Store(0)
	c.readSuspensions.Store(0)
	c.writeSuspensions.Store(0)
	c.alertsReceived.Store(0)
	c.protocolErrors.Store(0)
	c.sslv2Compat.Store(0)
	c.handshakeDuration.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector, creating it on first use.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollectorOnce.Do(func() {})
	globalCollector = c
}
