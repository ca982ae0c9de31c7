// Package statestore aggregates full and delta status envelopes into one live
// snapshot per scope.
//
// A scope only gains a snapshot from a status-full envelope. Deltas overlay
// their data onto an existing snapshot; a delta for an unknown scope is
// dropped (the caller treats that as a resync signal) and a delta carrying a
// full-only field is rejected without touching the snapshot.
package statestore

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/swarmpulse/envelope"
	"github.com/c360/swarmpulse/metric"
)

// DefaultTTL is how long a snapshot survives without updates.
const DefaultTTL = 30 * time.Minute

// FullOnlyFields may only arrive in a status-full envelope.
var FullOnlyFields = []string{"startedAt", "config", "io", "context"}

// Result describes what Apply did with an envelope.
type Result int

const (
	// Ignored means the envelope is not a status envelope.
	Ignored Result = iota
	// Replaced means a status-full envelope replaced the scope's snapshot.
	Replaced
	// MissingSnapshot means a delta arrived for a scope with no snapshot.
	MissingSnapshot
	// RejectedFullOnly means a delta carried a full-only field.
	RejectedFullOnly
	// Merged means a delta was overlaid onto the snapshot.
	Merged
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case Ignored:
		return "ignored"
	case Replaced:
		return "replaced"
	case MissingSnapshot:
		return "missing-snapshot"
	case RejectedFullOnly:
		return "rejected-full-only"
	case Merged:
		return "merged"
	default:
		return "unknown"
	}
}

// Changed reports whether the store was mutated.
func (r Result) Changed() bool {
	return r == Replaced || r == Merged
}

// Snapshot is the latest merged status for one scope.
type Snapshot struct {
	Scope         envelope.Scope     `json:"scope"`
	Envelope      *envelope.Envelope `json:"envelope"`
	LastUpdatedAt time.Time          `json:"lastUpdatedAt"`
}

// Option configures a Store
type Option func(*Store)

// WithTTL sets the snapshot expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the clock used by SweepExpired.
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

// WithMetrics records snapshot counts and update results.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store holds one Snapshot per scope. Mutations and their notifications are
// serialized; listeners may read the store but must not mutate it synchronously.
type Store struct {
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metric.Metrics

	notifyMu sync.Mutex

	mu        sync.RWMutex
	snapshots map[envelope.Scope]Snapshot
	listeners map[uint64]func([]Snapshot)
	nextID    uint64
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    slog.Default().With("component", "statestore"),
		snapshots: make(map[envelope.Scope]Snapshot),
		listeners: make(map[uint64]func([]Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply folds one envelope into the store.
func (s *Store) Apply(env *envelope.Envelope) Result {
	if env == nil || !env.IsStatus() {
		return Ignored
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	result := s.apply(env)
	s.metrics.RecordSnapshotUpdate(result.String())
	if result.Changed() {
		s.notifyLocked()
	}
	return result
}

func (s *Store) apply(env *envelope.Envelope) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if env.Type == envelope.TypeStatusFull {
		s.snapshots[env.Scope] = Snapshot{
			Scope:         env.Scope,
			Envelope:      env,
			LastUpdatedAt: env.Timestamp,
		}
		s.metrics.RecordSnapshots(len(s.snapshots))
		return Replaced
	}

	current, ok := s.snapshots[env.Scope]
	if !ok {
		return MissingSnapshot
	}
	for _, field := range FullOnlyFields {
		if _, present := env.Data[field]; present {
			s.logger.Debug("Rejected delta with full-only field", "scope", env.Scope.String(), "field", field)
			return RejectedFullOnly
		}
	}

	merged := make(map[string]any, len(current.Envelope.Data)+len(env.Data))
	for k, v := range current.Envelope.Data {
		merged[k] = v
	}
	for k, v := range env.Data {
		merged[k] = v
	}
	s.snapshots[env.Scope] = Snapshot{
		Scope:         env.Scope,
		Envelope:      current.Envelope.WithData(merged, env.Timestamp),
		LastUpdatedAt: env.Timestamp,
	}
	return Merged
}

// HasSnapshot reports whether the scope has a snapshot.
func (s *Store) HasSnapshot(scope envelope.Scope) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[scope]
	return ok
}

// Snapshot returns the snapshot for a scope.
func (s *Store) Snapshot(scope envelope.Scope) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[scope]
	return snap, ok
}

// Snapshots returns all snapshots ordered by scope.
func (s *Store) Snapshots() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Len returns the number of snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// SweepExpired removes snapshots not updated within the TTL and returns how
// many were removed. Listeners are notified only when something was removed.
func (s *Store) SweepExpired() int {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	now := s.now()
	s.mu.Lock()
	removed := 0
	for scope, snap := range s.snapshots {
		if now.Sub(snap.LastUpdatedAt) > s.ttl {
			delete(s.snapshots, scope)
			removed++
		}
	}
	remaining := len(s.snapshots)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("Expired stale snapshots", "removed", removed, "remaining", remaining)
		s.metrics.RecordSnapshots(remaining)
		s.notifyLocked()
	}
	return removed
}

// Subscribe registers a listener for every change and delivers the current
// snapshots immediately.
func (s *Store) Subscribe(fn func([]Snapshot)) (unsubscribe func()) {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.sortedLocked()
	s.mu.Unlock()
	fn(current)
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// notifyLocked delivers the current snapshots. Caller holds notifyMu.
func (s *Store) notifyLocked() {
	s.mu.RLock()
	if len(s.listeners) == 0 {
		s.mu.RUnlock()
		return
	}
	listeners := make([]func([]Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	snaps := s.sortedLocked()
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snaps)
	}
}

func (s *Store) sortedLocked() []Snapshot {
	out := make([]Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Less(out[j].Scope) })
	return out
}
