package testutil

import (
	"errors"
	"sync"
)

// ErrPublisherClosed is returned by a closed MockPublisher.
var ErrPublisherClosed = errors.New("publisher is closed")

// PublishedMessage is one message captured by MockPublisher.
type PublishedMessage struct {
	Subject string
	Data    []byte
}

// MockPublisher is an in-memory stand-in for a NATS connection's Publish.
// Thread-safe for concurrent use.
type MockPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
	closed   bool
}

// NewMockPublisher creates an empty publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the message.
func (p *MockPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if p.err != nil {
		return p.err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	p.messages = append(p.messages, PublishedMessage{Subject: subject, Data: buf})
	return nil
}

// FailWith makes subsequent publishes return err (nil to succeed again).
func (p *MockPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Close marks the publisher closed.
func (p *MockPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Messages returns a copy of every published message.
func (p *MockPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
