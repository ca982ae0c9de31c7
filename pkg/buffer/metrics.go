package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/swarmpulse/metric"
)

// bufferMetrics holds Prometheus metrics for ring operations.
type bufferMetrics struct {
	writes      prometheus.Counter
	drops       prometheus.Counter
	size        prometheus.Gauge
	weight      prometheus.Gauge
	utilization prometheus.Gauge
}

// newBufferMetrics creates and registers ring metrics with the provided registry.
func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &bufferMetrics{
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "swarmpulse",
			Subsystem:   "buffer",
			Name:        "writes_total",
			ConstLabels: labels,
			Help:        "Total number of ring push operations",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "swarmpulse",
			Subsystem:   "buffer",
			Name:        "drops_total",
			ConstLabels: labels,
			Help:        "Total number of items evicted from the ring",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "swarmpulse",
			Subsystem:   "buffer",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of items in the ring",
		}),
		weight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "swarmpulse",
			Subsystem:   "buffer",
			Name:        "weight",
			ConstLabels: labels,
			Help:        "Current accounted weight of items in the ring",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "swarmpulse",
			Subsystem:   "buffer",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Ring utilization by count (0.0 to 1.0)",
		}),
	}

	if err := registry.RegisterCounter(prefix, "buffer_writes", m.writes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "buffer_drops", m.drops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "buffer_size", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "buffer_weight", m.weight); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "buffer_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite(size, capacity int, weight int64) {
	m.writes.Inc()
	m.updateSize(size, capacity, weight)
}

func (m *bufferMetrics) recordDrops(n int) {
	if n > 0 {
		m.drops.Add(float64(n))
	}
}

func (m *bufferMetrics) updateSize(size, capacity int, weight int64) {
	m.size.Set(float64(size))
	m.weight.Set(float64(weight))
	m.utilization.Set(float64(size) / float64(capacity))
}
