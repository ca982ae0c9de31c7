// Package buffer provides a generic, thread-safe ring buffer that evicts its
// oldest items when either a count cap or a weight budget is exceeded.
package buffer

import (
	"sync"

	"github.com/c360/swarmpulse/errors"
)

// DropCallback is called for every item evicted from the ring.
type DropCallback[T any] func(item T)

// Weigher returns the accounted weight of an item (for example its byte size).
type Weigher[T any] func(item T) int64

// Ring is a FIFO ring that keeps at most capacity items and, when a weight
// budget is configured, at most maxWeight total weight.
//
// After every Push the oldest items are removed while
// Len() > capacity || Weight() > maxWeight. The weight of each item is computed
// once on Push and stored alongside it, so the running total is decremented by
// exactly the amount that was added.
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	weights  []int64
	head     int // index of the oldest item
	size     int
	capacity int
	weight   int64
	stats    *Statistics    // always initialized
	metrics  *bufferMetrics // optional Prometheus metrics
	opts     *bufferOptions[T]
}

// NewRing creates a ring with the given capacity and options.
// Returns an error if metrics registration fails when metrics are requested.
func NewRing[T any](capacity int, options ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "buffer", "NewRing", "capacity must be positive")
	}

	opts := applyOptions(options...)
	if opts.maxWeight < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "buffer", "NewRing", "max weight must not be negative")
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "NewRing", "metrics registration")
		}
	}

	return &Ring[T]{
		items:    make([]T, capacity),
		weights:  make([]int64, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Push appends item as the newest element and returns the items evicted to
// restore the bounds, oldest first. The pushed item itself is evicted when its
// weight alone exceeds the budget.
func (r *Ring[T]) Push(item T) []T {
	var w int64
	if r.opts.weigher != nil {
		w = r.opts.weigher(item)
	}

	r.mu.Lock()

	var evicted []T
	if r.size == r.capacity {
		evicted = append(evicted, r.popLocked())
	}

	idx := (r.head + r.size) % r.capacity
	r.items[idx] = item
	r.weights[idx] = w
	r.size++
	r.weight += w

	for r.size > 0 && r.opts.maxWeight > 0 && r.weight > r.opts.maxWeight {
		evicted = append(evicted, r.popLocked())
	}

	r.stats.Write()
	r.stats.UpdateSize(int64(r.size))
	r.stats.UpdateMemoryUsage(r.weight)
	for range evicted {
		r.stats.Drop()
	}
	if len(evicted) > 0 {
		r.stats.Overflow()
	}
	if r.metrics != nil {
		r.metrics.recordWrite(r.size, r.capacity, r.weight)
		r.metrics.recordDrops(len(evicted))
	}

	cb := r.opts.dropCallback
	r.mu.Unlock()

	if cb != nil {
		for _, it := range evicted {
			cb(it)
		}
	}
	return evicted
}

// popLocked removes and returns the oldest item. Caller holds r.mu and size > 0.
func (r *Ring[T]) popLocked() T {
	var zero T
	item := r.items[r.head]
	r.weight -= r.weights[r.head]
	r.items[r.head] = zero
	r.weights[r.head] = 0
	r.head = (r.head + 1) % r.capacity
	r.size--
	return item
}

// Items returns a copy of the retained items, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%r.capacity]
	}
	return out
}

// Len returns the number of retained items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Capacity returns the maximum number of items.
func (r *Ring[T]) Capacity() int {
	return r.capacity
}

// MaxWeight returns the weight budget, 0 when unbounded.
func (r *Ring[T]) MaxWeight() int64 {
	return r.opts.maxWeight
}

// Weight returns the running total weight of retained items.
func (r *Ring[T]) Weight() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.weight
}

// Clear removes all items and resets the weight counter.
// The drop callback is not invoked for cleared items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
		r.weights[i] = 0
	}
	r.head = 0
	r.size = 0
	r.weight = 0

	r.stats.UpdateSize(0)
	r.stats.UpdateMemoryUsage(0)
	if r.metrics != nil {
		r.metrics.updateSize(0, r.capacity, 0)
	}
}

// Stats returns the ring statistics.
func (r *Ring[T]) Stats() *Statistics {
	return r.stats
}
