package relay

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/c360/swarmpulse/envelope"
	"github.com/c360/swarmpulse/errors"
	"github.com/c360/swarmpulse/metric"
	"github.com/c360/swarmpulse/stomp"
)

// DefaultSubjectPrefix is the first subject token.
const DefaultSubjectPrefix = "swarmpulse"

// Publisher sends a message on a subject. *NATSPublisher implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Option configures a Relay
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records publish results.
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// Relay forwards decoded envelopes to a Publisher.
type Relay struct {
	pub     Publisher
	prefix  string
	logger  *slog.Logger
	metrics *metric.Metrics
}

// New creates a relay publishing under prefix.
func New(pub Publisher, prefix string, opts ...Option) (*Relay, error) {
	if pub == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Relay", "New", "publisher required")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	r := &Relay{
		pub:    pub,
		prefix: prefix,
		logger: slog.Default().With("component", "relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Handle relays msg when it carries a decoded envelope. It is shaped to be
// passed to stomp.Manager.SubscribeMessages.
func (r *Relay) Handle(msg stomp.Message) {
	if msg.Envelope == nil {
		return
	}
	if err := r.Publish(msg.Envelope); err != nil {
		r.logger.Warn("Relay publish failed", "routing_key", msg.RoutingKey, "error", err)
	}
}

// Publish sends one envelope.
func (r *Relay) Publish(env *envelope.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		r.metrics.RecordRelay("error")
		return errors.WrapInvalid(err, "Relay", "Publish", "marshal envelope")
	}
	subject := Subject(r.prefix, env)
	if err := r.pub.Publish(subject, data); err != nil {
		r.metrics.RecordRelay("error")
		return errors.WrapTransient(err, "Relay", "Publish", "publish "+subject)
	}
	r.metrics.RecordRelay("published")
	return nil
}

// Subject builds the relay subject for env.
func Subject(prefix string, env *envelope.Envelope) string {
	tokens := []string{
		prefix,
		token(string(env.Kind)),
		token(env.Type),
		token(env.Scope.SwarmID),
		token(env.Scope.Role),
		token(env.Scope.Instance),
	}
	return strings.Join(tokens, ".")
}

// token makes s safe as a single NATS subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
