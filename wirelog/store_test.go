package wirelog

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/swarmpulse/envelope"
	"github.com/c360/swarmpulse/metric"
	"github.com/c360/swarmpulse/schema"
	fixtures "github.com/c360/swarmpulse/testutil"
)

type staticSchema struct{ state schema.State }

func (s staticSchema) State() schema.State { return s.state }

func readyDecoder(t *testing.T) *envelope.Decoder {
	t.Helper()
	v, err := schema.Compile([]byte(fixtures.EnvelopeSchema))
	require.NoError(t, err)
	return envelope.NewDecoder(staticSchema{state: schema.State{Status: schema.StatusReady, Validator: v}})
}

// missingDecoder rejects everything with schema-missing, like a decoder
// before the first schema load.
func missingDecoder() *envelope.Decoder {
	return envelope.NewDecoder(staticSchema{})
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := fixtures.FixedTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newStore(t *testing.T, dec Decoder, opts ...Option) *Store {
	t.Helper()
	s, err := NewStore(dec, opts...)
	require.NoError(t, err)
	return s
}

func TestRecord_ValidAndInvalid(t *testing.T) {
	s := newStore(t, readyDecoder(t), WithClock(fixedClock()))

	ok := s.Record("stomp", "/exchange/ph.control/signal.start.sw1", fixtures.Signal("start", nil))
	assert.True(t, ok.Valid())
	assert.NotEmpty(t, ok.ID)
	assert.Empty(t, ok.Errors)
	require.NotNil(t, ok.Envelope)
	assert.Equal(t, envelope.KindSignal, ok.Envelope.Kind)

	bad := s.Record("stomp", "rk", "not-json")
	assert.False(t, bad.Valid())
	assert.Nil(t, bad.Envelope)
	require.Len(t, bad.Errors, 1)
	assert.Equal(t, envelope.CodeDecodeFailed, bad.Errors[0].Code)
	assert.NotEqual(t, ok.ID, bad.ID)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ok.ID, entries[0].ID)
	assert.Equal(t, bad.ID, entries[1].ID)
	assert.True(t, entries[0].ReceivedAt.Before(entries[1].ReceivedAt))
}

func TestEntrySize(t *testing.T) {
	s := newStore(t, readyDecoder(t))

	payload := fixtures.Signal("start", nil)
	ok := s.Record("stomp", "", payload)
	envJSON, err := json.Marshal(ok.Envelope)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)+len(envJSON)), ok.Size())

	bad := s.Record("stomp", "", "oops")
	errJSON, err := json.Marshal(bad.Errors)
	require.NoError(t, err)
	assert.Equal(t, int64(len("oops")+len(errJSON)), bad.Size())

	assert.Equal(t, ok.Size()+bad.Size(), s.TotalBytes())
}

func TestEviction_CountCap(t *testing.T) {
	s := newStore(t, missingDecoder())

	for i := 0; i < DefaultMaxEntries+250; i++ {
		s.Record("stomp", "", "x")
		require.LessOrEqual(t, s.Len(), DefaultMaxEntries)
	}
	assert.Equal(t, DefaultMaxEntries, s.Len())
}

func TestEviction_BoundHoldsForRandomTraffic(t *testing.T) {
	const (
		maxEntries       = 40
		maxBytes   int64 = 8 << 10
	)
	s := newStore(t, missingDecoder(), WithMaxEntries(maxEntries), WithMaxBytes(maxBytes))
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		payload := strings.Repeat("a", rng.Intn(1500))
		s.Record("stomp", "", payload)

		assert.LessOrEqual(t, s.Len(), maxEntries)
		assert.LessOrEqual(t, s.TotalBytes(), maxBytes)

		var sum int64
		for _, e := range s.Entries() {
			sum += e.Size()
		}
		require.Equal(t, sum, s.TotalBytes(), "running counter must match retained entries")
	}
}

func TestEviction_OversizedEntry(t *testing.T) {
	s := newStore(t, missingDecoder(), WithMaxBytes(1024))

	s.Record("stomp", "", "small")
	huge := s.Record("stomp", "", strings.Repeat("z", 4096))

	assert.Greater(t, huge.Size(), int64(1024))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.TotalBytes())
}

func TestClear(t *testing.T) {
	s := newStore(t, missingDecoder())
	s.Record("stomp", "", "a")
	s.Record("stomp", "", "b")
	require.Greater(t, s.TotalBytes(), int64(0))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.TotalBytes())

	e := s.Record("stomp", "", "c")
	assert.Equal(t, e.Size(), s.TotalBytes())
}

func TestSubscribe(t *testing.T) {
	s := newStore(t, missingDecoder())
	s.Record("stomp", "", "first")

	var lists [][]Entry
	unsubscribe := s.Subscribe(func(entries []Entry) {
		lists = append(lists, entries)
	})

	s.Record("stomp", "", "second")
	s.Clear()
	unsubscribe()
	s.Record("stomp", "", "ignored")

	require.Len(t, lists, 3)
	assert.Len(t, lists[0], 1, "immediate delivery on subscribe")
	require.Len(t, lists[1], 2)
	assert.Equal(t, "first", lists[1][0].Payload)
	assert.Equal(t, "second", lists[1][1].Payload)
	assert.Empty(t, lists[2])
}

func TestSubscribe_ConcurrentRecordsDeliveredInOrder(t *testing.T) {
	s := newStore(t, missingDecoder())

	var lengths []int
	s.Subscribe(func(entries []Entry) { lengths = append(lengths, len(entries)) })

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Record("stomp", "", "p")
			}
		}()
	}
	wg.Wait()

	require.Len(t, lengths, 201)
	for i, n := range lengths {
		assert.Equal(t, i, n)
	}
}

func TestExportLines_RoundTrip(t *testing.T) {
	s := newStore(t, readyDecoder(t), WithClock(fixedClock()))
	s.Record("stomp", "/exchange/ph.control/signal.start.a", fixtures.Signal("start", nil))
	s.Record("rest", "", "not-json")
	s.Record("stomp", "", fixtures.StatusFull("sw1", "gen", "g-1", fixtures.FixedTime, map[string]any{"tps": 1.0}))
	stored := s.Entries()

	out := s.ExportLines()
	lines := strings.Split(string(out), "\n")
	require.Len(t, lines, 3)

	for i, line := range lines {
		var obj map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &obj))
		assert.Equal(t, stored[i].Payload, obj["payload"])
		assert.Equal(t, stored[i].ReceivedAt.Format(time.RFC3339Nano), obj["receivedAt"])
		assert.Contains(t, obj, "errors")
	}

	parsed, err := ParseLines(out)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	for i := range parsed {
		assert.Equal(t, stored[i].ID, parsed[i].ID)
		assert.True(t, stored[i].ReceivedAt.Equal(parsed[i].ReceivedAt))
		assert.Equal(t, stored[i].Payload, parsed[i].Payload)
	}
	assert.Equal(t, envelope.CodeDecodeFailed, parsed[1].Errors[0].Code)
	require.NotNil(t, parsed[2].Envelope)
	assert.Equal(t, "status-full", parsed[2].Envelope.Type)
}

func TestExportLines_Empty(t *testing.T) {
	s := newStore(t, missingDecoder())
	assert.Empty(t, s.ExportLines())
}

func TestWriteGzip(t *testing.T) {
	s := newStore(t, missingDecoder())
	s.Record("stomp", "", "one")
	s.Record("stomp", "", "two")

	var buf bytes.Buffer
	require.NoError(t, s.WriteGzip(&buf))

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, s.ExportLines(), plain)
}

func TestParseLines_Invalid(t *testing.T) {
	_, err := ParseLines([]byte("{\"id\":\"a\"}\nnot json"))
	require.Error(t, err)
}

func TestMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	s := newStore(t, readyDecoder(t), WithMetrics(registry), WithMaxEntries(2))

	s.Record("stomp", "", "bad")
	s.Record("stomp", "", fixtures.Signal("start", nil))
	s.Record("stomp", "", "{")

	m := registry.CoreMetrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesInvalid.WithLabelValues("decode-failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WireLogEntries))
	assert.Equal(t, float64(s.TotalBytes()), testutil.ToFloat64(m.WireLogBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WireLogEvictions))

	// the ring's own collectors are registered under the wirelog owner
	_, err := NewStore(readyDecoder(t), WithMetrics(registry))
	require.Error(t, err)
}
