package testutil

import (
	"encoding/json"
	"time"
)

// EnvelopeSchema is the control-plane envelope JSON schema used across tests.
const EnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "ControlPlaneEnvelope",
  "type": "object",
  "required": ["timestamp", "version", "kind", "type", "origin", "scope", "data"],
  "properties": {
    "timestamp": {"type": "string", "format": "date-time"},
    "version": {"type": "string"},
    "kind": {"enum": ["signal", "outcome", "metric", "event"]},
    "type": {"type": "string", "minLength": 1},
    "origin": {"type": "string"},
    "scope": {
      "type": "object",
      "required": ["swarmId", "role", "instance"],
      "properties": {
        "swarmId": {"type": "string"},
        "role": {"type": "string"},
        "instance": {"type": "string"}
      }
    },
    "correlationId": {"type": ["string", "null"]},
    "idempotencyKey": {"type": ["string", "null"]},
    "data": {"type": "object"}
  }
}`

// FixedTime is the default fixture timestamp.
var FixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// Envelope builds control-plane envelope JSON.
type Envelope struct {
	Timestamp     time.Time
	Kind          string
	Type          string
	Origin        string
	SwarmID       string
	Role          string
	Instance      string
	CorrelationID string
	Data          map[string]any
}

// JSON renders the envelope in wire shape.
func (e Envelope) JSON() string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = FixedTime
	}
	origin := e.Origin
	if origin == "" {
		origin = "orchestrator"
	}
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}

	doc := map[string]any{
		"timestamp": ts.Format(time.RFC3339Nano),
		"version":   "1",
		"kind":      e.Kind,
		"type":      e.Type,
		"origin":    origin,
		"scope": map[string]any{
			"swarmId":  e.SwarmID,
			"role":     e.Role,
			"instance": e.Instance,
		},
		"data": data,
	}
	if e.CorrelationID != "" {
		doc["correlationId"] = e.CorrelationID
	}

	b, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// StatusFull returns a metric/status-full envelope for the scope.
func StatusFull(swarmID, role, instance string, ts time.Time, data map[string]any) string {
	return Envelope{Timestamp: ts, Kind: "metric", Type: "status-full",
		SwarmID: swarmID, Role: role, Instance: instance, Data: data}.JSON()
}

// StatusDelta returns a metric/status-delta envelope for the scope.
func StatusDelta(swarmID, role, instance string, ts time.Time, data map[string]any) string {
	return Envelope{Timestamp: ts, Kind: "metric", Type: "status-delta",
		SwarmID: swarmID, Role: role, Instance: instance, Data: data}.JSON()
}

// Signal returns a signal envelope of the given type.
func Signal(typ string, data map[string]any) string {
	return Envelope{Kind: "signal", Type: typ,
		SwarmID: "sw1", Role: "orchestrator", Instance: "orch-1", Data: data}.JSON()
}
