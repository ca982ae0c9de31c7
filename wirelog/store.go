// Package wirelog keeps a bounded forensic record of every inbound frame,
// valid or not, and exports it as JSON Lines.
package wirelog

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/swarmpulse/envelope"
	"github.com/c360/swarmpulse/metric"
	"github.com/c360/swarmpulse/pkg/buffer"
)

// Default retention limits
const (
	DefaultMaxEntries       = 5000
	DefaultMaxBytes   int64 = 10 << 20
)

// Decoder decodes one payload. *envelope.Decoder implements it.
type Decoder interface {
	Decode(source, routingKey, payload string, receivedAt time.Time) (*envelope.Envelope, error)
}

// Option configures a Store
type Option func(*Store)

// WithMaxEntries caps the number of retained entries.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithMaxBytes caps the accounted byte size of retained entries.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithClock overrides the receive-time clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics exports wire log size and invalid frame counts.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Store) {
		s.registry = registry
	}
}

// Store is the wire log. Record and Clear are serialized with their
// notifications; listeners see every mutation in order.
type Store struct {
	decoder    Decoder
	maxEntries int
	maxBytes   int64
	now        func() time.Time
	logger     *slog.Logger
	registry   *metric.MetricsRegistry
	metrics    *metric.Metrics

	ring *buffer.Ring[Entry]

	// notifyMu orders mutations with their notifications.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	listeners map[uint64]func([]Entry)
	nextID    uint64
}

// NewStore creates a wire log that decodes with decoder.
func NewStore(decoder Decoder, opts ...Option) (*Store, error) {
	s := &Store{
		decoder:    decoder,
		maxEntries: DefaultMaxEntries,
		maxBytes:   DefaultMaxBytes,
		now:        time.Now,
		logger:     slog.Default().With("component", "wirelog"),
		listeners:  make(map[uint64]func([]Entry)),
	}
	for _, opt := range opts {
		opt(s)
	}

	ring, err := buffer.NewRing[Entry](s.maxEntries,
		buffer.WithWeigher[Entry](Entry.Size),
		buffer.WithMaxWeight[Entry](s.maxBytes),
		buffer.WithMetrics[Entry](s.registry, "wirelog"),
	)
	if err != nil {
		return nil, err
	}
	s.ring = ring
	s.metrics = s.registry.CoreMetrics()
	return s, nil
}

// Record decodes payload, appends the resulting entry and returns it. The
// entry is returned even when the byte budget evicted it immediately.
func (s *Store) Record(source, routingKey, payload string) Entry {
	receivedAt := s.now()
	env, err := s.decoder.Decode(source, routingKey, payload, receivedAt)

	entry := Entry{
		ID:         uuid.NewString(),
		ReceivedAt: receivedAt,
		Source:     source,
		RoutingKey: routingKey,
		Payload:    payload,
		Envelope:   env,
		Errors:     []envelope.DecodeError{},
	}
	if err != nil {
		var derr *envelope.DecodeError
		if !errors.As(err, &derr) {
			derr = &envelope.DecodeError{Code: envelope.CodeDecodeFailed, Message: err.Error(), Snippet: envelope.Snippet(payload)}
		}
		entry.Errors = append(entry.Errors, *derr)
		s.metrics.RecordInvalid(string(derr.Code))
	}
	entry.size = entrySize(entry)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	evicted := s.ring.Push(entry)
	if len(evicted) > 0 {
		s.logger.Debug("Wire log evicted entries", "count", len(evicted), "bytes", s.ring.Weight())
	}
	s.metrics.RecordWireLog(s.ring.Len(), s.ring.Weight(), len(evicted))
	s.notifyLocked()

	return entry
}

// Subscribe registers a listener that receives the full ordered entry list on
// every mutation, and once immediately. Listeners must not call Record or
// Clear synchronously.
func (s *Store) Subscribe(fn func([]Entry)) (unsubscribe func()) {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	fn(s.ring.Items())
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Entries returns the retained entries, oldest first.
func (s *Store) Entries() []Entry {
	return s.ring.Items()
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	return s.ring.Len()
}

// TotalBytes returns the running accounted byte size.
func (s *Store) TotalBytes() int64 {
	return s.ring.Weight()
}

// Clear empties the log and resets the byte counter.
func (s *Store) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.ring.Clear()
	s.metrics.RecordWireLog(0, 0, 0)
	s.notifyLocked()
}

// notifyLocked delivers the current list. Caller holds notifyMu.
func (s *Store) notifyLocked() {
	s.mu.Lock()
	listeners := make([]func([]Entry), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if len(listeners) == 0 {
		return
	}
	entries := s.ring.Items()
	for _, fn := range listeners {
		fn(entries)
	}
}
