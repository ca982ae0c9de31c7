package stomp

import (
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrames(t *testing.T) {
	a, err := encodeFrame(frame.New(frame.MESSAGE, frame.Destination, "/topic/a"))
	require.NoError(t, err)
	b, err := encodeFrame(frame.New(frame.MESSAGE, frame.Destination, "/topic/b"))
	require.NoError(t, err)
	hb, err := encodeFrame(nil)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(hb))

	data := append(append(append([]byte{}, hb...), a...), b...)
	frames, err := splitFrames(data)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "/topic/a", frames[0].Header.Get(frame.Destination))
	assert.Equal(t, "/topic/b", frames[1].Header.Get(frame.Destination))

	frames, err = splitFrames(hb)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestSplitFrames_Body(t *testing.T) {
	f := frame.New(frame.MESSAGE, frame.Destination, "/topic/a")
	f.Body = []byte(`{"a":1}`)
	data, err := encodeFrame(f)
	require.NoError(t, err)

	frames, err := splitFrames(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, `{"a":1}`, string(frames[0].Body))
}

func TestConnectFrame(t *testing.T) {
	cfg := Config{URL: "ws://broker/ws", Login: "guest", Passcode: "secret", Heartbeat: 10 * time.Second}.withDefaults()
	f := connectFrame(cfg)

	assert.Equal(t, frame.CONNECT, f.Command)
	assert.Equal(t, "1.2,1.1,1.0", f.Header.Get(frame.AcceptVersion))
	assert.Equal(t, "/", f.Header.Get(frame.Host))
	assert.Equal(t, "10000,10000", f.Header.Get(frame.HeartBeat))
	assert.Equal(t, "guest", f.Header.Get(frame.Login))
	assert.Equal(t, "secret", f.Header.Get(frame.Passcode))

	anon := connectFrame(Config{URL: "ws://broker/ws"}.withDefaults())
	_, ok := anon.Header.Contains(frame.Login)
	assert.False(t, ok)
	assert.Equal(t, "0,0", anon.Header.Get(frame.HeartBeat))
}

func TestSubscribeFrame(t *testing.T) {
	f := subscribeFrame(3, "/exchange/ph.control/signal.#")
	assert.Equal(t, frame.SUBSCRIBE, f.Command)
	assert.Equal(t, "sub-3", f.Header.Get(frame.Id))
	assert.Equal(t, "/exchange/ph.control/signal.#", f.Header.Get(frame.Destination))
	assert.Equal(t, "auto", f.Header.Get(frame.Ack))
}

func TestNegotiateHeartBeat(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		want        time.Duration
		send        time.Duration
		readTimeout time.Duration
	}{
		{"no header", "", time.Second, time.Second, 0},
		{"disabled locally", "5000,5000", 0, 0, 0},
		{"broker sends slower", "5000,0", time.Second, time.Second, 15 * time.Second},
		{"broker sends faster", "500,0", time.Second, time.Second, 3 * time.Second},
		{"broker wants slower beats", "0,4000", time.Second, 4 * time.Second, 0},
		{"malformed", "abc", time.Second, time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frame.New(frame.CONNECTED)
			if tt.header != "" {
				f.Header.Add(frame.HeartBeat, tt.header)
			}
			send, readTimeout := negotiateHeartBeat(f, tt.want)
			assert.Equal(t, tt.send, send)
			assert.Equal(t, tt.readTimeout, readTimeout)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"ws", "ws://localhost:15674/ws", false},
		{"wss", "wss://broker.example/ws", false},
		{"empty", "", true},
		{"http scheme", "http://localhost:15674/ws", true},
		{"unparseable", "ws://%zz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{URL: tt.url}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{URL: "ws://x", Heartbeat: -time.Second}.withDefaults()
	assert.Equal(t, DefaultVirtualHost, cfg.Host)
	assert.Equal(t, DefaultTopics, cfg.Topics)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Zero(t, cfg.Heartbeat)

	// explicit empty topic list is kept
	cfg = Config{URL: "ws://x", Topics: []string{}}.withDefaults()
	assert.Empty(t, cfg.Topics)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", State(42).String())

	b, err := StateConnected.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"connected"`, string(b))
}
