package envelope

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/swarmpulse/schema"
	"github.com/c360/swarmpulse/testutil"
)

type staticSchema struct{ state schema.State }

func (s staticSchema) State() schema.State { return s.state }

func readySchema(t *testing.T) staticSchema {
	t.Helper()
	v, err := schema.Compile([]byte(testutil.EnvelopeSchema))
	require.NoError(t, err)
	return staticSchema{state: schema.State{Status: schema.StatusReady, ETag: `"v1"`, Validator: v}}
}

func decodeErr(t *testing.T, err error) *DecodeError {
	t.Helper()
	require.Error(t, err)
	var derr *DecodeError
	require.True(t, errors.As(err, &derr), "error must be a *DecodeError, got %T", err)
	return derr
}

func TestDecode_SchemaNotReady(t *testing.T) {
	tests := []struct {
		name  string
		state schema.State
		want  Code
	}{
		{"never loaded", schema.State{Status: schema.StatusIdle}, CodeSchemaMissing},
		{"first load in flight", schema.State{Status: schema.StatusLoading}, CodeSchemaMissing},
		{"load failed", schema.State{Status: schema.StatusError, Err: errors.New("503")}, CodeSchemaInvalid},
		{"retry after failure in flight", schema.State{Status: schema.StatusLoading, Err: errors.New("503")}, CodeSchemaInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(staticSchema{state: tt.state})
			env, err := d.Decode("rest", "", "{}", time.Time{})
			assert.Nil(t, env)
			assert.Equal(t, tt.want, decodeErr(t, err).Code)
		})
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	d := NewDecoder(readySchema(t))

	_, err := d.Decode("stomp", "rk", "not-json", time.Now())
	derr := decodeErr(t, err)
	assert.Equal(t, CodeDecodeFailed, derr.Code)
	assert.Contains(t, derr.Message, "invalid character")
	assert.Equal(t, "not-json", derr.Snippet)
}

func TestDecode_SchemaViolation(t *testing.T) {
	d := NewDecoder(readySchema(t))

	payload := testutil.Envelope{Kind: "metric", Type: "status-full", SwarmID: "sw1", Role: "gen", Instance: "g-1"}.JSON()
	payload = strings.Replace(payload, `"swarmId":"sw1"`, `"swarmId":7`, 1)

	_, err := d.Decode("stomp", "", payload, time.Now())
	derr := decodeErr(t, err)
	assert.Equal(t, CodeSchemaViolation, derr.Code)
	assert.Equal(t, "/scope/swarmId", derr.DataPath)
	assert.Equal(t, "invalid_type", derr.SchemaPath)
}

func TestDecode_RoutingConsistency(t *testing.T) {
	d := NewDecoder(readySchema(t))
	start := testutil.Signal("start", map[string]any{"swarmId": "sw1"})

	tests := []struct {
		name       string
		payload    string
		routingKey string
		wantErr    bool
	}{
		{"matching exchange destination", start, "/exchange/ph.control/signal.start.extra", false},
		{"wrong family", start, "/exchange/ph.control/event.outcome.start.x", true},
		{"no routing key skips check", start, "", false},
		{"bare routing key", start, "signal.start.sw1", false},
		{"topic destination", start, "/topic/signal.start.sw1", false},
		{"type must be followed by a dot", start, "/exchange/ph.control/signal.start", true},
		{"other type", start, "/exchange/ph.control/signal.stop.sw1", true},
		{
			"outcome",
			testutil.Envelope{Kind: "outcome", Type: "swarm-start", SwarmID: "sw1", Role: "r", Instance: "i"}.JSON(),
			"/exchange/ph.control/event.outcome.swarm-start.sw1",
			false,
		},
		{
			"metric",
			testutil.StatusFull("sw1", "gen", "g-1", testutil.FixedTime, nil),
			"/exchange/ph.control/event.metric.status-full.sw1.gen.g-1",
			false,
		},
		{
			"event maps to alert",
			testutil.Envelope{Kind: "event", Type: "alert", SwarmID: "sw1", Role: "r", Instance: "i"}.JSON(),
			"/exchange/ph.control/event.alert.alert.sw1",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := d.Decode("stomp", tt.routingKey, tt.payload, time.Now())
			if tt.wantErr {
				assert.Equal(t, CodeRoutingInvalid, decodeErr(t, err).Code)
				assert.Nil(t, env)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, env)
		})
	}
}

func TestDecode_CustomDestinationPrefixes(t *testing.T) {
	d := NewDecoder(readySchema(t), WithDestinationPrefixes("/amq/queue/ph/"))
	start := testutil.Signal("start", nil)

	_, err := d.Decode("stomp", "/amq/queue/ph/signal.start.a", start, time.Now())
	assert.NoError(t, err)

	_, err = d.Decode("stomp", "/exchange/ph.control/signal.start.a", start, time.Now())
	assert.Equal(t, CodeRoutingInvalid, decodeErr(t, err).Code)
}

func TestDecode_EvaluationOrder(t *testing.T) {
	// a malformed payload with a mismatched routing key reports the earliest failure
	d := NewDecoder(readySchema(t))
	_, err := d.Decode("stomp", "/exchange/ph.control/event.metric.x.y", "{", time.Now())
	assert.Equal(t, CodeDecodeFailed, decodeErr(t, err).Code)

	_, err = d.Decode("stomp", "/exchange/ph.control/event.metric.x.y", `{"kind":"signal"}`, time.Now())
	assert.Equal(t, CodeSchemaViolation, decodeErr(t, err).Code)

	missing := NewDecoder(staticSchema{})
	_, err = missing.Decode("stomp", "rk", "{", time.Now())
	assert.Equal(t, CodeSchemaMissing, decodeErr(t, err).Code)
}

func TestDecode_Envelope(t *testing.T) {
	d := NewDecoder(readySchema(t))
	ts := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC)
	payload := testutil.Envelope{
		Timestamp:     ts,
		Kind:          "metric",
		Type:          "status-full",
		SwarmID:       "sw1",
		Role:          "generator",
		Instance:      "gen-1",
		CorrelationID: "c-1",
		Data:          map[string]any{"enabled": true, "tps": 12.5, "startedAt": "2026-01-01T00:00:00Z"},
	}.JSON()

	env, err := d.Decode("stomp", "/exchange/ph.control/event.metric.status-full.sw1", payload, time.Now())
	require.NoError(t, err)

	assert.True(t, env.Timestamp.Equal(ts))
	assert.Equal(t, KindMetric, env.Kind)
	assert.Equal(t, "status-full", env.Type)
	assert.Equal(t, Scope{SwarmID: "sw1", Role: "generator", Instance: "gen-1"}, env.Scope)
	assert.Equal(t, "c-1", env.CorrelationID)
	assert.Equal(t, "", env.IdempotencyKey)
	assert.True(t, env.IsStatus())

	full, ok := env.Payload.(StatusFull)
	require.True(t, ok, "payload is %T", env.Payload)
	require.NotNil(t, full.Enabled)
	assert.True(t, *full.Enabled)
	require.NotNil(t, full.TPS)
	assert.Equal(t, 12.5, *full.TPS)
	assert.Equal(t, "2026-01-01T00:00:00Z", full.Fields["startedAt"])
}

func TestPayloadVariants(t *testing.T) {
	tests := []struct {
		kind Kind
		typ  string
		data map[string]any
		want Payload
	}{
		{KindMetric, TypeStatusDelta, map[string]any{"tps": 3.0}, StatusDelta{}},
		{KindMetric, "queue-depth", map[string]any{"depth": 4.0}, Metric{}},
		{KindOutcome, "swarm-start", map[string]any{"status": "ok", "code": "X", "retryable": false}, Outcome{}},
		{KindEvent, "alert", map[string]any{"level": "warn", "code": "LAG", "message": "lagging"}, Alert{}},
		{KindSignal, "stop", map[string]any{"force": true}, Signal{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.typ, func(t *testing.T) {
			p := payloadFor(tt.kind, tt.typ, tt.data)
			assert.IsType(t, tt.want, p)
		})
	}

	out := payloadFor(KindOutcome, "x", map[string]any{"status": "failed", "code": "E1", "retryable": true}).(Outcome)
	assert.Equal(t, "failed", out.Status)
	assert.Equal(t, "E1", out.Code)
	require.NotNil(t, out.Retryable)
	assert.True(t, *out.Retryable)

	alert := payloadFor(KindEvent, "alert", map[string]any{"level": "error", "message": "boom"}).(Alert)
	assert.Equal(t, "error", alert.Level)
	assert.Equal(t, "boom", alert.Message)
	assert.Equal(t, "", alert.Code)

	assert.Nil(t, payloadFor(Kind("other"), "x", nil))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short"))

	long := strings.Repeat("é", MaxSnippetRunes+100)
	s := Snippet(long)
	assert.Equal(t, MaxSnippetRunes, len([]rune(s)))

	d := NewDecoder(staticSchema{})
	_, err := d.Decode("stomp", "", strings.Repeat("x", 10_000), time.Now())
	assert.Len(t, decodeErr(t, err).Snippet, MaxSnippetRunes)
}

func TestScope(t *testing.T) {
	a := Scope{SwarmID: "a", Role: "gen", Instance: "1"}
	b := Scope{SwarmID: "a", Role: "gen", Instance: "2"}
	c := Scope{SwarmID: "b", Role: "agg", Instance: "1"}

	assert.Equal(t, "a/gen/1", a.String())
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.False(t, a.Less(a))
}

func TestEnvelope_WithData(t *testing.T) {
	env := &Envelope{Kind: KindMetric, Type: TypeStatusFull, Data: map[string]any{"tps": 1.0}}
	ts := time.Now()

	next := env.WithData(map[string]any{"tps": 2.0}, ts)
	assert.Equal(t, 1.0, env.Data["tps"])
	assert.Equal(t, 2.0, next.Data["tps"])
	assert.Equal(t, ts, next.Timestamp)
	assert.Equal(t, 2.0, *next.Payload.(StatusFull).TPS)
}

func TestDecodeError_Error(t *testing.T) {
	e := &DecodeError{Code: CodeSchemaViolation, Message: "Invalid type", DataPath: "/scope"}
	assert.Equal(t, "schema-violation: Invalid type (at /scope)", e.Error())

	e = &DecodeError{Code: CodeDecodeFailed, Message: "unexpected end of JSON input"}
	assert.Equal(t, "decode-failed: unexpected end of JSON input", e.Error())
}
