package buffer

import (
	"github.com/c360/swarmpulse/metric"
)

// Option configures a Ring using the functional options pattern.
type Option[T any] func(*bufferOptions[T])

// bufferOptions holds internal configuration for ring instances.
// Stats are always collected; metrics are optional.
type bufferOptions[T any] struct {
	dropCallback DropCallback[T]
	weigher      Weigher[T]
	maxWeight    int64

	// metricsReg is optional; when set, ring stats are also exposed as Prometheus metrics
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithWeigher sets the function used to weigh each pushed item.
// Without a weigher every item weighs zero and only the count cap applies.
func WithWeigher[T any](weigher Weigher[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.weigher = weigher
	}
}

// WithMaxWeight sets the total weight budget. Zero disables the budget.
func WithMaxWeight[T any](maxWeight int64) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.maxWeight = maxWeight
	}
}

// WithMetrics enables Prometheus metrics export for ring statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithDropCallback sets a callback invoked, outside the ring lock, for each evicted item.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
