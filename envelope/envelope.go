// Package envelope decodes control-plane messages into typed envelopes.
//
// Decoding parses the payload, validates it against the envelope schema,
// checks that kind/type agree with the routing key, and maps the kind×type
// pair once to a Payload variant. Failures are returned as *DecodeError with a
// stable Code; they never panic and never carry more than a bounded snippet of
// the payload.
package envelope

import (
	"fmt"
	"time"
)

// Kind is the envelope category.
type Kind string

// Envelope kinds
const (
	KindSignal  Kind = "signal"
	KindOutcome Kind = "outcome"
	KindMetric  Kind = "metric"
	KindEvent   Kind = "event"
)

// Status envelope types carried with KindMetric.
const (
	TypeStatusFull  = "status-full"
	TypeStatusDelta = "status-delta"
)

// Scope identifies one worker process's status stream.
type Scope struct {
	SwarmID  string `json:"swarmId"`
	Role     string `json:"role"`
	Instance string `json:"instance"`
}

// String renders the scope as swarm/role/instance.
func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s", s.SwarmID, s.Role, s.Instance)
}

// Less orders scopes by swarm, role, then instance.
func (s Scope) Less(o Scope) bool {
	if s.SwarmID != o.SwarmID {
		return s.SwarmID < o.SwarmID
	}
	if s.Role != o.Role {
		return s.Role < o.Role
	}
	return s.Instance < o.Instance
}

// Envelope is one decoded control-plane message. Treat as immutable; use
// WithData to derive a modified copy.
type Envelope struct {
	Timestamp      time.Time      `json:"timestamp"`
	Version        string         `json:"version"`
	Kind           Kind           `json:"kind"`
	Type           string         `json:"type"`
	Origin         string         `json:"origin"`
	Scope          Scope          `json:"scope"`
	CorrelationID  string         `json:"correlationId,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	Data           map[string]any `json:"data"`

	// Payload is the typed view of Data for this kind×type.
	Payload Payload `json:"-"`
}

// IsStatus reports whether the envelope is a status-full or status-delta metric.
func (e *Envelope) IsStatus() bool {
	return e.Kind == KindMetric && (e.Type == TypeStatusFull || e.Type == TypeStatusDelta)
}

// WithData returns a copy of e carrying data, timestamp ts, and a payload
// recomputed from the new data.
func (e *Envelope) WithData(data map[string]any, ts time.Time) *Envelope {
	cp := *e
	cp.Data = data
	cp.Timestamp = ts
	cp.Payload = payloadFor(cp.Kind, cp.Type, data)
	return &cp
}
