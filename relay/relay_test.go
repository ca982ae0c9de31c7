package relay

import (
	"encoding/json"
	"errors"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/swarmpulse/envelope"
	swerrors "github.com/c360/swarmpulse/errors"
	"github.com/c360/swarmpulse/metric"
	"github.com/c360/swarmpulse/stomp"
	"github.com/c360/swarmpulse/testutil"
)

func sampleEnvelope() *envelope.Envelope {
	return &envelope.Envelope{
		Timestamp: testutil.FixedTime,
		Version:   "1",
		Kind:      envelope.KindMetric,
		Type:      envelope.TypeStatusFull,
		Origin:    "w1",
		Scope:     envelope.Scope{SwarmID: "sw1", Role: "worker", Instance: "w1"},
		Data:      map[string]any{"enabled": true},
	}
}

func TestSubject(t *testing.T) {
	env := sampleEnvelope()
	assert.Equal(t, "swarmpulse.metric.status-full.sw1.worker.w1", Subject("swarmpulse", env))

	env.Scope = envelope.Scope{SwarmID: "sw.1", Role: "a*b", Instance: ""}
	env.Type = "x >y"
	assert.Equal(t, "p.metric.x__y.sw_1.a_b._", Subject("p", env))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "p")
	require.Error(t, err)
	assert.True(t, swerrors.IsInvalid(err))

	r, err := New(testutil.NewMockPublisher(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSubjectPrefix, r.prefix)
}

func TestHandle_PublishesDecodedEnvelopes(t *testing.T) {
	pub := testutil.NewMockPublisher()
	metrics := metric.NewMetrics()
	r, err := New(pub, "cp", WithMetrics(metrics))
	require.NoError(t, err)

	r.Handle(stomp.Message{RoutingKey: "/exchange/ph.control/event.metric.status-full.sw1.worker.w1", Envelope: sampleEnvelope()})
	r.Handle(stomp.Message{RoutingKey: "x", Errors: []envelope.DecodeError{{Code: envelope.CodeDecodeFailed}}})

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "cp.metric.status-full.sw1.worker.w1", msgs[0].Subject)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &wire))
	assert.Equal(t, "metric", wire["kind"])
	assert.Equal(t, "sw1", wire["scope"].(map[string]any)["swarmId"])
	assert.NotContains(t, wire, "Payload")

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.RelayPublished.WithLabelValues("published")))
}

func TestPublish_Failure(t *testing.T) {
	pub := testutil.NewMockPublisher()
	metrics := metric.NewMetrics()
	r, err := New(pub, "cp", WithMetrics(metrics))
	require.NoError(t, err)

	pub.FailWith(errors.New("nats: connection closed"))
	err = r.Publish(sampleEnvelope())
	require.Error(t, err)
	assert.True(t, swerrors.IsTransient(err))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.RelayPublished.WithLabelValues("error")))

	// Handle swallows the error
	r.Handle(stomp.Message{Envelope: sampleEnvelope()})
	assert.Empty(t, pub.Messages())
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "swarmpulse-test", nil)
	require.Error(t, err)
	assert.True(t, swerrors.IsTransient(err))
}
