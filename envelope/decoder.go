package envelope

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/swarmpulse/schema"
)

// SchemaSource provides the current schema state. *schema.Registry implements it.
type SchemaSource interface {
	State() schema.State
}

// Option configures a Decoder
type Option func(*Decoder)

// WithDestinationPrefixes replaces the destination prefixes stripped from routing keys.
func WithDestinationPrefixes(prefixes ...string) Option {
	return func(d *Decoder) {
		d.prefixes = newPrefixStripper(prefixes)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// Decoder turns raw payloads into envelopes. It holds no mutable state and is
// safe for concurrent use.
type Decoder struct {
	schemas  SchemaSource
	prefixes prefixStripper
	logger   *slog.Logger
}

// NewDecoder creates a decoder validating against schemas.
func NewDecoder(schemas SchemaSource, opts ...Option) *Decoder {
	d := &Decoder{
		schemas:  schemas,
		prefixes: newPrefixStripper(DefaultDestinationPrefixes),
		logger:   slog.Default().With("component", "envelope-decoder"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// wireEnvelope mirrors Envelope with a string timestamp so parse failures are
// reported as decode errors rather than by encoding/json.
type wireEnvelope struct {
	Timestamp      string         `json:"timestamp"`
	Version        string         `json:"version"`
	Kind           Kind           `json:"kind"`
	Type           string         `json:"type"`
	Origin         string         `json:"origin"`
	Scope          Scope          `json:"scope"`
	CorrelationID  *string        `json:"correlationId"`
	IdempotencyKey *string        `json:"idempotencyKey"`
	Data           map[string]any `json:"data"`
}

// Decode parses and validates one message. routingKey may be empty, in which
// case the routing consistency check is skipped. The returned error is always
// a *DecodeError. receivedAt is only used for diagnostics.
func (d *Decoder) Decode(source, routingKey, payload string, receivedAt time.Time) (*Envelope, error) {
	env, derr := d.decode(routingKey, payload)
	if derr != nil {
		d.logger.Debug("Decode failed",
			"source", source,
			"routing_key", routingKey,
			"received_at", receivedAt,
			"code", derr.Code,
			"error", derr.Message)
		return nil, derr
	}
	return env, nil
}

func (d *Decoder) decode(routingKey, payload string) (*Envelope, *DecodeError) {
	st := d.schemas.State()
	if !st.Ready() {
		if st.Failed() {
			return nil, newDecodeError(CodeSchemaInvalid, payload, "schema unavailable: %s", st.ErrorMessage())
		}
		return nil, newDecodeError(CodeSchemaMissing, payload, "schema not loaded")
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, newDecodeError(CodeDecodeFailed, payload, "%s", err.Error())
	}

	violation, err := st.Validator.Validate(doc)
	if err != nil {
		return nil, newDecodeError(CodeSchemaViolation, payload, "%s", err.Error())
	}
	if violation != nil {
		derr := newDecodeError(CodeSchemaViolation, payload, "%s", violation.Message)
		derr.DataPath = violation.DataPath
		derr.SchemaPath = violation.SchemaPath
		return nil, derr
	}

	var w wireEnvelope
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, newDecodeError(CodeDecodeFailed, payload, "%s", err.Error())
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return nil, newDecodeError(CodeDecodeFailed, payload, "timestamp: %s", err.Error())
	}

	if routingKey != "" {
		expected, ok := ExpectedPrefix(w.Kind, w.Type)
		actual := d.prefixes.strip(routingKey)
		if !ok || !strings.HasPrefix(actual, expected) {
			return nil, newDecodeError(CodeRoutingInvalid, payload,
				"routing key %q does not match %s/%s (expected prefix %q)", actual, w.Kind, w.Type, expected)
		}
	}

	if w.Data == nil {
		w.Data = map[string]any{}
	}
	env := &Envelope{
		Timestamp:      ts,
		Version:        w.Version,
		Kind:           w.Kind,
		Type:           w.Type,
		Origin:         w.Origin,
		Scope:          w.Scope,
		CorrelationID:  deref(w.CorrelationID),
		IdempotencyKey: deref(w.IdempotencyKey),
		Data:           w.Data,
		Payload:        payloadFor(w.Kind, w.Type, w.Data),
	}
	return env, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
