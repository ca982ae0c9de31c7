// Package metric provides the Prometheus registry and HTTP exporter for swarmpulse.
//
// NewMetricsRegistry creates a private Prometheus registry with the ingestion
// pipeline metrics (frames, invalid payloads by decoder code, connection state,
// reconnects, wire log size, live snapshots, refresh outcomes, schema status)
// plus the Go runtime collectors. Components register their own collectors via
// the MetricsRegistrar methods, keyed by owner and metric name so duplicate
// registration is reported as an invalid error instead of a panic.
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//	go func() { _ = server.Start() }()
//
//	registry.CoreMetrics().RecordInvalid("schema-violation")
//
// All Record methods tolerate a nil *Metrics so components can run without a
// registry in tests.
package metric
