package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter exports collector metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given
// collector. The namespace is prepended to all metric names (e.g., "s2n").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	e.counter(w, "handshakes_started_total", "Negotiations started.", labels, snap.HandshakesStarted)
	e.counter(w, "handshakes_completed_total", "Negotiations that reached HANDSHAKE_OVER.", labels, snap.HandshakesCompleted)
	e.counter(w, "handshakes_failed_total", "Negotiations that failed fatally.", labels, snap.HandshakesFailed)

	e.counter(w, "records_read_total", "Inbound records processed.", labels, snap.RecordsRead)
	e.counter(w, "records_written_total", "Outbound records framed.", labels, snap.RecordsWritten)
	e.counter(w, "record_bytes_read_total", "Inbound record payload bytes.", labels, snap.BytesRead)
	e.counter(w, "record_bytes_written_total", "Outbound record payload bytes.", labels, snap.BytesWritten)

	e.counter(w, "fragmented_messages_total", "Handshake messages spanning records.", labels, snap.FragmentedMessages)
	e.counter(w, "read_suspensions_total", "BLOCKED_ON_READ suspensions.", labels, snap.ReadSuspensions)
	e.counter(w, "write_suspensions_total", "BLOCKED_ON_WRITE suspensions.", labels, snap.WriteSuspensions)

	e.counter(w, "alerts_received_total", "Inbound TLS alerts.", labels, snap.AlertsReceived)
	e.counter(w, "protocol_errors_total", "Wire-level protocol violations by peers.", labels, snap.ProtocolErrors)
	e.counter(w, "sslv2_compat_hellos_total", "SSLv2-framed ClientHello messages.", labels, snap.SSLv2Compat)

	e.histogram(w, "handshake_duration_ms", "Handshake duration in milliseconds.", labels, snap.HandshakeDuration)

	fmt.Fprintf(w, "# HELP %s_uptime_seconds Seconds since the collector was created.\n", e.namespace)
	fmt.Fprintf(w, "# TYPE %s_uptime_seconds gauge\n", e.namespace)
	fmt.Fprintf(w, "%s_uptime_seconds%s %f\n", e.namespace, labels, snap.Uptime.Seconds())
}

func (e *PrometheusExporter) counter(w io.Writer, name, help, labels string, value uint64) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
	fmt.Fprintf(w, "# TYPE %s_%s counter\n", e.namespace, name)
	fmt.Fprintf(w, "%s_%s%s %d\n", e.namespace, name, labels, value)
}

func (e *PrometheusExporter) histogram(w io.Writer, name, help, labels string, s HistogramSummary) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
	fmt.Fprintf(w, "# TYPE %s_%s histogram\n", e.namespace, name)
	for _, b := range s.Buckets {
		le := "+Inf"
		if !math.IsInf(b.UpperBound, 1) {
			le = fmt.Sprintf("%g", b.UpperBound)
		}
		fmt.Fprintf(w, "%s_%s_bucket%s %d\n", e.namespace, name, e.mergeLabel(labels, "le", le), b.Count)
	}
	fmt.Fprintf(w, "%s_%s_sum%s %f\n", e.namespace, name, labels, s.Sum)
	fmt.Fprintf(w, "%s_%s_count%s %d\n", e.namespace, name, labels, s.Count)
}

// formatLabels renders the collector labels as a Prometheus label set.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// mergeLabel inserts one extra label into an already-rendered label set.
func (e *PrometheusExporter) mergeLabel(labels, key, value string) string {
	extra := fmt.Sprintf("%s=%q", key, value)
	if labels == "" {
		return "{" + extra + "}"
	}
	return strings.TrimSuffix(labels, "}") + "," + extra + "}"
}
