package settings

import "sync"

// Store is the current settings value with change subscriptions.
type Store struct {
	// notifyMu orders updates with their notifications.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	current   Settings
	listeners map[uint64]func(Settings)
	nextID    uint64
}

// NewStore creates a store holding initial.
func NewStore(initial Settings) *Store {
	return &Store{
		current:   initial,
		listeners: make(map[uint64]func(Settings)),
	}
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set validates and stores next. Listeners are notified only when the value
// changed. It reports whether it did.
func (s *Store) Set(next Settings) (bool, error) {
	if err := next.Validate(); err != nil {
		return false, err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.current == next {
		s.mu.Unlock()
		return false, nil
	}
	s.current = next
	listeners := make([]func(Settings), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return true, nil
}

// Subscribe registers fn and delivers the current settings immediately.
func (s *Store) Subscribe(fn func(Settings)) (unsubscribe func()) {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.current
	s.mu.Unlock()
	fn(current)
	s.notifyMu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
