package stomp

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/c360/swarmpulse/errors"
)

// acceptVersions lists the protocol versions offered in CONNECT.
const acceptVersions = "1.2,1.1,1.0"

// subprotocols offered during the WebSocket handshake.
var subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// splitFrames parses every NUL-terminated frame in one WebSocket message.
// Heart-beat EOLs are skipped. Frames parsed before a malformed one are
// returned together with the error.
func splitFrames(data []byte) ([]*frame.Frame, error) {
	r := frame.NewReader(bytes.NewReader(data))
	var frames []*frame.Frame
	for {
		f, err := r.Read()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, errors.WrapInvalid(err, "stomp", "splitFrames", "parse frame")
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
}

// encodeFrame serializes a frame, or a heart-beat EOL when f is nil.
func encodeFrame(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, errors.WrapInvalid(err, "stomp", "encodeFrame", "write frame")
	}
	return buf.Bytes(), nil
}

func connectFrame(cfg Config) *frame.Frame {
	hb := heartBeatHeader(cfg.Heartbeat)
	f := frame.New(frame.CONNECT,
		frame.AcceptVersion, acceptVersions,
		frame.Host, cfg.Host,
		frame.HeartBeat, hb,
	)
	if cfg.Login != "" {
		f.Header.Add(frame.Login, cfg.Login)
	}
	if cfg.Passcode != "" {
		f.Header.Add(frame.Passcode, cfg.Passcode)
	}
	return f
}

func subscribeFrame(id int, destination string) *frame.Frame {
	return frame.New(frame.SUBSCRIBE,
		frame.Id, "sub-"+strconv.Itoa(id),
		frame.Destination, destination,
		frame.Ack, "auto",
	)
}

func disconnectFrame() *frame.Frame {
	return frame.New(frame.DISCONNECT)
}

func heartBeatHeader(d time.Duration) string {
	ms := strconv.FormatInt(d.Milliseconds(), 10)
	return ms + "," + ms
}

// negotiateHeartBeat returns the outgoing send interval and the incoming
// read timeout for a CONNECTED frame. The read timeout is three times the
// interval the broker promises to send at, or zero when the broker sends none.
func negotiateHeartBeat(f *frame.Frame, want time.Duration) (send, readTimeout time.Duration) {
	send = want
	hb, ok := f.Header.Contains(frame.HeartBeat)
	if !ok || want <= 0 {
		return send, 0
	}
	sx, sy, err := frame.ParseHeartBeat(hb)
	if err != nil {
		return send, 0
	}
	if sy > send {
		send = sy
	}
	if sx > 0 {
		incoming := sx
		if want > incoming {
			incoming = want
		}
		readTimeout = 3 * incoming
	}
	return send, readTimeout
}
