package stomp

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"

	"github.com/c360/swarmpulse/envelope"
	"github.com/c360/swarmpulse/errors"
	"github.com/c360/swarmpulse/metric"
	"github.com/c360/swarmpulse/pkg/retry"
	"github.com/c360/swarmpulse/wirelog"
)

const (
	writeTimeout      = 5 * time.Second
	disconnectTimeout = time.Second
	source            = "stomp"
)

// Recorder decodes and stores an inbound frame. *wirelog.Store implements it.
type Recorder interface {
	Record(source, routingKey, payload string) wirelog.Entry
}

// Message is published for every inbound MESSAGE or ERROR frame.
type Message struct {
	RoutingKey string
	Envelope   *envelope.Envelope
	Errors     []envelope.DecodeError
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records frames, state and reconnects.
func WithMetrics(mt *metric.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithSchedule overrides the reconnect backoff.
func WithSchedule(s retry.Schedule) Option {
	return func(m *Manager) {
		m.schedule = s
	}
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithTLSConfig sets the TLS configuration used for wss:// URLs.
func WithTLSConfig(c *tls.Config) Option {
	return func(m *Manager) {
		m.tlsConfig = c
	}
}

// Manager is the connection manager. All methods are safe for concurrent use.
// State and message listeners run on the manager's goroutines and must not
// call Start, Stop or Reconfigure synchronously.
type Manager struct {
	recorder  Recorder
	logger    *slog.Logger
	metrics   *metric.Metrics
	schedule  retry.Schedule
	dialer    *websocket.Dialer
	tlsConfig *tls.Config

	// notifyMu orders state transitions with their notifications.
	notifyMu sync.Mutex

	mu      sync.Mutex
	cfg     Config
	state   State
	gen     uint64 // bumped per connection attempt and on Stop
	attempt int    // failed attempts since the last CONNECTED
	sess    *session
	timer   *time.Timer

	stateListeners map[uint64]func(State)
	msgListeners   map[uint64]func(Message)
	nextID         uint64

	wg sync.WaitGroup
}

// session is one WebSocket connection.
type session struct {
	gen    uint64
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
}

func (s *session) send(f *frame.Frame) error {
	return s.sendWithTimeout(f, writeTimeout)
}

// sendWithTimeout writes f, failing with ErrNotConnected while the
// transport is still being dialled.
func (s *session) sendWithTimeout(f *frame.Frame, timeout time.Duration) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return errors.WrapTransient(errors.ErrNotConnected, "session", "send", "write frame")
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// NewManager creates an idle manager.
func NewManager(cfg Config, recorder Recorder, opts ...Option) *Manager {
	m := &Manager{
		recorder: recorder,
		logger:   slog.Default().With("component", "stomp"),
		schedule: retry.DefaultSchedule(),
		dialer: &websocket.Dialer{
			Proxy:        websocket.DefaultDialer.Proxy,
			Subprotocols: subprotocols,
		},
		cfg:            cfg.withDefaults(),
		stateListeners: make(map[uint64]func(State)),
		msgListeners:   make(map[uint64]func(Message)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tlsConfig != nil {
		d := *m.dialer
		d.TLSClientConfig = m.tlsConfig
		m.dialer = &d
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Reconfigure replaces the configuration. It takes effect on the next connect.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg.withDefaults()
}

// Start begins connecting. It is a no-op while already running.
func (m *Manager) Start() error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.state.running() {
		m.mu.Unlock()
		return nil
	}
	if err := m.cfg.Validate(); err != nil {
		m.mu.Unlock()
		return errors.WrapInvalid(err, "Manager", "Start", "validate config")
	}
	m.attempt = 0
	gen := m.beginAttemptLocked()
	m.mu.Unlock()

	m.logger.Info("Connecting to broker", "url", m.Config().URL, "generation", gen)
	m.publishState(StateConnecting)
	return nil
}

// Stop closes the transport, cancels any pending reconnect and moves to
// offline. It is idempotent and waits for the manager's goroutines to exit.
func (m *Manager) Stop() {
	sess, wasConnected := m.goOffline()
	if sess != nil {
		if wasConnected {
			// best effort; a dial in progress has no transport to write to
			_ = sess.sendWithTimeout(disconnectFrame(), disconnectTimeout)
		}
		m.closeSession(sess)
	}
	m.wg.Wait()
}

// goOffline moves to offline and detaches the current session. It returns a
// nil session when the manager was already offline.
func (m *Manager) goOffline() (sess *session, wasConnected bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.state == StateOffline {
		m.mu.Unlock()
		return nil, false
	}
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	sess = m.sess
	wasConnected = m.state == StateConnected
	m.sess = nil
	m.state = StateOffline
	m.mu.Unlock()

	m.logger.Info("Broker connection stopped")
	m.publishState(StateOffline)
	return sess, wasConnected
}

// SubscribeState registers a state listener and delivers the current state immediately.
func (m *Manager) SubscribeState(fn func(State)) (unsubscribe func()) {
	m.notifyMu.Lock()
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.stateListeners[id] = fn
	current := m.state
	m.mu.Unlock()
	fn(current)
	m.notifyMu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.stateListeners, id)
		m.mu.Unlock()
	}
}

// SubscribeMessages registers a listener for inbound MESSAGE and ERROR frames.
func (m *Manager) SubscribeMessages(fn func(Message)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.msgListeners[id] = fn

	return func() {
		m.mu.Lock()
		delete(m.msgListeners, id)
		m.mu.Unlock()
	}
}

// beginAttemptLocked moves to connecting and launches a dial for a new
// generation. Caller holds m.mu and notifyMu.
func (m *Manager) beginAttemptLocked() uint64 {
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	cfg := m.cfg
	m.wg.Add(1)
	go m.connect(gen, cfg)
	return gen
}

func (m *Manager) connect(gen uint64, cfg Config) {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{gen: gen, ctx: ctx, cancel: cancel}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		cancel()
		return
	}
	m.sess = sess
	m.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	conn, resp, err := m.dialer.DialContext(dialCtx, cfg.URL, nil)
	dialCancel()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		m.fail(gen, errors.WrapTransient(err, "Manager", "connect", "dial broker"))
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	sess.writeMu.Lock()
	sess.conn = conn
	sess.writeMu.Unlock()
	m.mu.Unlock()

	if err := sess.send(connectFrame(cfg)); err != nil {
		m.fail(gen, errors.WrapTransient(err, "Manager", "connect", "send CONNECT"))
		return
	}

	m.readLoop(sess, cfg)
}

// readLoop processes inbound messages until the transport fails.
func (m *Manager) readLoop(sess *session, cfg Config) {
	// until CONNECTED arrives the handshake deadline applies
	readTimeout := cfg.ConnectTimeout
	connected := false

	for {
		if readTimeout > 0 {
			_ = sess.conn.SetReadDeadline(time.Now().Add(readTimeout))
		} else {
			_ = sess.conn.SetReadDeadline(time.Time{})
		}

		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			m.fail(sess.gen, errors.WrapTransient(classifyReadError(err, readTimeout, connected),
				"Manager", "readLoop", "read frame"))
			return
		}

		frames, perr := splitFrames(data)
		for _, f := range frames {
			if next, ok := m.handleFrame(sess, cfg, f); ok {
				readTimeout = next
				connected = true
			}
		}
		if perr != nil {
			m.logger.Warn("Malformed STOMP frame", "error", perr, "bytes", len(data))
		}
	}
}

// classifyReadError maps a transport read failure to a sentinel: a deadline
// before CONNECTED is a handshake timeout, after it a missed heart-beat, and
// anything else a lost connection.
func classifyReadError(err error, readTimeout time.Duration, connected bool) error {
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		if !connected {
			return fmt.Errorf("%w: no CONNECTED within %s", errors.ErrConnectionTimeout, readTimeout)
		}
		return fmt.Errorf("%w: no traffic for %s", errors.ErrHeartbeatMissed, readTimeout)
	}
	return fmt.Errorf("%w: %w", errors.ErrConnectionLost, err)
}

// handleFrame dispatches one frame. It returns a new read timeout when the
// frame changes it.
func (m *Manager) handleFrame(sess *session, cfg Config, f *frame.Frame) (time.Duration, bool) {
	m.metrics.RecordFrame(f.Command)

	switch f.Command {
	case frame.CONNECTED:
		return m.onConnected(sess, cfg, f), true

	case frame.MESSAGE, frame.ERROR:
		if f.Command == frame.ERROR {
			m.logger.Warn("Broker reported error", "message", f.Header.Get(frame.Message))
		}
		routingKey := f.Header.Get(frame.Destination)
		entry := m.recorder.Record(source, routingKey, string(f.Body))
		m.publishMessage(Message{
			RoutingKey: routingKey,
			Envelope:   entry.Envelope,
			Errors:     entry.Errors,
		})

	default:
		m.logger.Debug("Ignoring STOMP frame", "command", f.Command)
	}
	return 0, false
}

func (m *Manager) onConnected(sess *session, cfg Config, f *frame.Frame) time.Duration {
	send, readTimeout := negotiateHeartBeat(f, cfg.Heartbeat)

	m.notifyMu.Lock()
	m.mu.Lock()
	if sess.gen != m.gen {
		m.mu.Unlock()
		m.notifyMu.Unlock()
		return readTimeout
	}
	m.attempt = 0
	m.state = StateConnected
	m.mu.Unlock()

	m.logger.Info("Broker session established",
		"version", f.Header.Get(frame.Version),
		"heartbeat", send,
		"read_timeout", readTimeout)
	m.publishState(StateConnected)
	m.notifyMu.Unlock()

	if send > 0 {
		m.wg.Add(1)
		go m.heartbeat(sess, send)
	}

	for i, topic := range cfg.Topics {
		if err := sess.send(subscribeFrame(i, topic)); err != nil {
			m.logger.Warn("Subscribe failed", "destination", topic, "error", err)
			break
		}
	}
	return readTimeout
}

// heartbeat sends EOLs while the session is open.
func (m *Manager) heartbeat(sess *session, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			if err := sess.send(nil); err != nil {
				m.logger.Debug("Heartbeat send failed", "error", err)
				return
			}
		}
	}
}

// fail handles a transport failure for generation gen. Stale generations are ignored.
func (m *Manager) fail(gen uint64, err error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if gen != m.gen || !m.state.running() {
		m.mu.Unlock()
		return
	}
	sess := m.sess
	m.sess = nil

	delay := m.schedule.Delay(m.attempt)
	attempt := m.attempt
	m.attempt = m.schedule.Clamp(m.attempt + 1)
	m.state = StateReconnecting
	m.timer = time.AfterFunc(delay, func() { m.reconnect(gen) })
	m.mu.Unlock()

	if sess != nil {
		m.closeSession(sess)
	}
	m.metrics.RecordReconnect()
	m.logger.Warn("Broker connection lost, scheduling reconnect",
		"error", err, "attempt", attempt+1, "delay", delay)
	m.publishState(StateReconnecting)
}

// reconnect fires after the backoff delay.
func (m *Manager) reconnect(gen uint64) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.beginAttemptLocked()
	m.mu.Unlock()

	m.publishState(StateConnecting)
}

func (m *Manager) closeSession(sess *session) {
	sess.cancel()
	sess.writeMu.Lock()
	conn := sess.conn
	sess.writeMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// publishState notifies state listeners. Caller holds notifyMu.
func (m *Manager) publishState(s State) {
	m.metrics.RecordConnectionState(int(s))

	m.mu.Lock()
	listeners := make([]func(State), 0, len(m.stateListeners))
	for _, fn := range m.stateListeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func (m *Manager) publishMessage(msg Message) {
	m.mu.Lock()
	listeners := make([]func(Message), 0, len(m.msgListeners))
	for _, fn := range m.msgListeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(msg)
	}
}
