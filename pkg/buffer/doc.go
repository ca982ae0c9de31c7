// # Overview
//
// Ring keeps the newest items of a stream inside two bounds: a maximum item
// count and an optional weight budget. Each pushed item is weighed once; the
// ring maintains a running total and evicts from the oldest end until both
// bounds hold again.
//
//	ring, err := buffer.NewRing[Entry](5000,
//		buffer.WithWeigher[Entry](func(e Entry) int64 { return e.Size }),
//		buffer.WithMaxWeight[Entry](10<<20),
//		buffer.WithMetrics[Entry](registry, "wirelog"),
//	)
//	evicted := ring.Push(entry)
//
// # Observability
//
// Statistics are always collected and available via Stats(). WithMetrics
// additionally exports writes, drops, size, weight and utilization to a
// metric.MetricsRegistry under the swarmpulse_buffer_* names, labelled with the
// component prefix.
package buffer
