package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "swarmpulse"

// Metrics contains the ingestion pipeline metrics.
// Every Record method is safe to call on a nil *Metrics.
type Metrics struct {
	FramesReceived   *prometheus.CounterVec
	FramesInvalid    *prometheus.CounterVec
	ConnectionState  prometheus.Gauge
	Reconnects       prometheus.Counter
	WireLogEntries   prometheus.Gauge
	WireLogBytes     prometheus.Gauge
	WireLogEvictions prometheus.Counter
	Snapshots        prometheus.Gauge
	SnapshotUpdates  *prometheus.CounterVec
	RefreshRequests  *prometheus.CounterVec
	SchemaStatus     prometheus.Gauge
	RelayPublished   *prometheus.CounterVec
}

// NewMetrics creates the pipeline metrics (unregistered)
func NewMetrics() *Metrics {
	return &Metrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stomp",
			Name:      "frames_received_total",
			Help:      "Inbound STOMP frames by command",
		}, []string{"command"}),

		FramesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "invalid_frames_total",
			Help:      "Inbound payloads that failed decoding, by error code",
		}, []string{"code"}),

		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stomp",
			Name:      "connection_state",
			Help:      "Connection state (0=idle, 1=connecting, 2=connected, 3=reconnecting, 4=offline)",
		}),

		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stomp",
			Name:      "reconnects_total",
			Help:      "Scheduled reconnect attempts",
		}),

		WireLogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wirelog",
			Name:      "entries",
			Help:      "Entries retained in the wire log",
		}),

		WireLogBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wirelog",
			Name:      "bytes",
			Help:      "Accounted bytes retained in the wire log",
		}),

		WireLogEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wirelog",
			Name:      "evictions_total",
			Help:      "Entries evicted from the wire log",
		}),

		Snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "snapshots",
			Help:      "Scopes with a live status snapshot",
		}),

		SnapshotUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "updates_total",
			Help:      "Status envelopes applied to the state store, by result",
		}, []string{"result"}),

		RefreshRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "refresh_requests_total",
			Help:      "Full resync requests, by result (ok, failed, throttled)",
		}, []string{"result"}),

		SchemaStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "status",
			Help:      "Schema registry status (0=idle, 1=loading, 2=ready, 3=error)",
		}),

		RelayPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "published_total",
			Help:      "Envelopes republished to NATS, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FramesReceived,
		m.FramesInvalid,
		m.ConnectionState,
		m.Reconnects,
		m.WireLogEntries,
		m.WireLogBytes,
		m.WireLogEvictions,
		m.Snapshots,
		m.SnapshotUpdates,
		m.RefreshRequests,
		m.SchemaStatus,
		m.RelayPublished,
	}
}

// RecordFrame increments the inbound frame counter
func (m *Metrics) RecordFrame(command string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(command).Inc()
}

// RecordInvalid increments the invalid payload counter
func (m *Metrics) RecordInvalid(code string) {
	if m == nil {
		return
	}
	m.FramesInvalid.WithLabelValues(code).Inc()
}

// RecordConnectionState sets the connection state gauge
func (m *Metrics) RecordConnectionState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// RecordReconnect increments the reconnect counter
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// RecordWireLog updates the wire log gauges and eviction counter
func (m *Metrics) RecordWireLog(entries int, bytes int64, evicted int) {
	if m == nil {
		return
	}
	m.WireLogEntries.Set(float64(entries))
	m.WireLogBytes.Set(float64(bytes))
	if evicted > 0 {
		m.WireLogEvictions.Add(float64(evicted))
	}
}

// RecordSnapshots sets the live snapshot gauge
func (m *Metrics) RecordSnapshots(count int) {
	if m == nil {
		return
	}
	m.Snapshots.Set(float64(count))
}

// RecordSnapshotUpdate increments the state store update counter
func (m *Metrics) RecordSnapshotUpdate(result string) {
	if m == nil {
		return
	}
	m.SnapshotUpdates.WithLabelValues(result).Inc()
}

// RecordRefresh increments the refresh counter
func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshRequests.WithLabelValues(result).Inc()
}

// RecordSchemaStatus sets the schema status gauge
func (m *Metrics) RecordSchemaStatus(status int) {
	if m == nil {
		return
	}
	m.SchemaStatus.Set(float64(status))
}

// RecordRelay increments the relay publish counter
func (m *Metrics) RecordRelay(result string) {
	if m == nil {
		return
	}
	m.RelayPublished.WithLabelValues(result).Inc()
}
