package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks ring activity.
type Statistics struct {
	writes    int64
	overflows int64
	drops     int64

	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
	memoryUsage int64 // accounted weight
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Write records a push.
func (s *Statistics) Write() {
	atomic.AddInt64(&s.writes, 1)
}

// Overflow records a push that caused at least one eviction.
func (s *Statistics) Overflow() {
	atomic.AddInt64(&s.overflows, 1)
}

// Drop records one evicted item.
func (s *Statistics) Drop() {
	atomic.AddInt64(&s.drops, 1)
}

// UpdateSize updates the current item count.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// UpdateMemoryUsage updates the accounted weight.
func (s *Statistics) UpdateMemoryUsage(usage int64) {
	s.mu.Lock()
	s.memoryUsage = usage
	s.mu.Unlock()
}

// Writes returns the total number of pushes.
func (s *Statistics) Writes() int64 {
	return atomic.LoadInt64(&s.writes)
}

// Overflows returns the number of pushes that evicted something.
func (s *Statistics) Overflows() int64 {
	return atomic.LoadInt64(&s.overflows)
}

// Drops returns the total number of evicted items.
func (s *Statistics) Drops() int64 {
	return atomic.LoadInt64(&s.drops)
}

// CurrentSize returns the current item count.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the highest item count observed.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// MemoryUsage returns the accounted weight.
func (s *Statistics) MemoryUsage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memoryUsage
}

// Throughput returns the average number of pushes per second.
func (s *Statistics) Throughput() float64 {
	elapsed := s.Uptime()
	if elapsed == 0 {
		return 0.0
	}
	return float64(s.Writes()) / elapsed.Seconds()
}

// DropRate returns evicted items per push (0.0 when nothing was pushed).
func (s *Statistics) DropRate() float64 {
	writes := s.Writes()
	if writes == 0 {
		return 0.0
	}
	return float64(s.Drops()) / float64(writes)
}

// Uptime returns how long the tracker has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// StatsSummary is a point-in-time copy of all statistics.
type StatsSummary struct {
	Writes      int64         `json:"writes"`
	Overflows   int64         `json:"overflows"`
	Drops       int64         `json:"drops"`
	CurrentSize int64         `json:"current_size"`
	MaxSize     int64         `json:"max_size"`
	MemoryUsage int64         `json:"memory_usage"`
	Throughput  float64       `json:"throughput"`
	DropRate    float64       `json:"drop_rate"`
	Uptime      time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:      s.Writes(),
		Overflows:   s.Overflows(),
		Drops:       s.Drops(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		MemoryUsage: s.MemoryUsage(),
		Throughput:  s.Throughput(),
		DropRate:    s.DropRate(),
		Uptime:      s.Uptime(),
	}
}
