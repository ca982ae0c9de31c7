package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/swarmpulse/envelope"
	"github.com/c360/swarmpulse/health"
	"github.com/c360/swarmpulse/metric"
	"github.com/c360/swarmpulse/schema"
	"github.com/c360/swarmpulse/settings"
	"github.com/c360/swarmpulse/statestore"
	"github.com/c360/swarmpulse/stomp"
)

// Defaults
const (
	DefaultRefreshThrottle = 2 * time.Second
	DefaultSweepInterval   = 60 * time.Second
)

// SchemaSource is the schema registry as seen by the coordinator.
type SchemaSource interface {
	State() schema.State
	Load(ctx context.Context) schema.State
	Subscribe(fn func(schema.State)) (unsubscribe func())
}

// Connection is the broker connection as seen by the coordinator.
type Connection interface {
	Start() error
	Stop()
	State() stomp.State
	Config() stomp.Config
	Reconfigure(cfg stomp.Config)
	SubscribeState(fn func(stomp.State)) (unsubscribe func())
	SubscribeMessages(fn func(stomp.Message)) (unsubscribe func())
}

// StateStore receives decoded status envelopes.
type StateStore interface {
	Apply(env *envelope.Envelope) statestore.Result
	SweepExpired() int
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRefresher sets the refresh collaborator. Without one every refresh reports false.
func WithRefresher(r Refresher) Option {
	return func(c *Coordinator) {
		c.refresher = r
	}
}

// WithSettings applies settings from store on Start and on every change.
func WithSettings(store *settings.Store) Option {
	return func(c *Coordinator) {
		c.settingsStore = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records refresh results.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithMonitor publishes health parts into an existing monitor.
func WithMonitor(m *health.Monitor) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.monitor = m
		}
	}
}

// WithClock sets the time source used by the refresh throttle.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRefreshThrottle sets the window during which repeated refresh
// requests reuse the previous result.
func WithRefreshThrottle(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.throttle = d
		}
	}
}

// WithSweepInterval sets how often expired snapshots are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// refreshCall is one refresh request shared by every caller inside the throttle window.
type refreshCall struct {
	done     chan struct{}
	finished bool
	result   bool
}

// Coordinator owns the composite health and the refresh triggers.
type Coordinator struct {
	schema        SchemaSource
	conn          Connection
	states        StateStore
	refresher     Refresher
	settingsStore *settings.Store
	monitor       *health.Monitor
	logger        *slog.Logger
	metrics       *metric.Metrics
	now           func() time.Time
	throttle      time.Duration
	sweepInterval time.Duration

	// lifecycle
	lifeMu  sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	unsubs  []func()
	wg      sync.WaitGroup

	// notifyMu orders health changes with their notifications.
	notifyMu sync.Mutex

	mu              sync.Mutex
	health          Health
	schemaReady     bool
	wasConnected    bool
	healthListeners map[uint64]func(Health)
	nextID          uint64

	refreshMu   sync.Mutex
	lastRefresh *refreshCall
	lastStart   time.Time

	settingsMu  sync.Mutex
	settings    settings.Settings
	hasSettings bool
}

// New creates a stopped coordinator.
func New(src SchemaSource, conn Connection, states StateStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		schema:          src,
		conn:            conn,
		states:          states,
		monitor:         health.NewMonitor(),
		logger:          slog.Default().With("component", "coordinator"),
		now:             time.Now,
		throttle:        DefaultRefreshThrottle,
		sweepInterval:   DefaultSweepInterval,
		healthListeners: make(map[uint64]func(Health)),
	}
	for _, opt := range opts {
		opt(c)
	}

	st := src.State()
	c.health = Health{
		SchemaStatus:    st.Status,
		SchemaError:     st.ErrorMessage(),
		ConnectionState: conn.State(),
	}
	c.schemaReady = st.Ready()
	c.updateMonitor(c.health)
	return c
}

// Start subscribes to the pipeline and starts the sweeper. It is idempotent.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.running {
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	c.unsubs = append(c.unsubs,
		c.schema.Subscribe(c.onSchema),
		c.conn.SubscribeState(c.onConnectionState),
		c.conn.SubscribeMessages(c.onMessage),
	)
	if c.settingsStore != nil {
		c.unsubs = append(c.unsubs, c.settingsStore.Subscribe(func(s settings.Settings) {
			if err := c.ApplySettings(s); err != nil {
				c.logger.Warn("Applying settings failed", "error", err)
			}
		}))
	}

	c.wg.Add(1)
	go c.sweep(c.ctx)

	c.logger.Info("Coordinator started", "refresh_throttle", c.throttle, "sweep_interval", c.sweepInterval)
	return nil
}

// Stop removes subscriptions, stops the sweeper and waits for background
// refreshes. It does not stop the connection. It is idempotent.
func (c *Coordinator) Stop() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if !c.running {
		return
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.cancel()
	c.wg.Wait()
	c.logger.Info("Coordinator stopped")
}

// Health returns the composite health.
func (c *Coordinator) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

// Status renders the composite health as a health.Status tree.
func (c *Coordinator) Status() health.Status {
	return c.monitor.AggregateHealth("swarmpulse")
}

// SubscribeHealth registers fn and delivers the current health immediately.
func (c *Coordinator) SubscribeHealth(fn func(Health)) (unsubscribe func()) {
	c.notifyMu.Lock()
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.healthListeners[id] = fn
	current := c.health
	c.mu.Unlock()
	fn(current)
	c.notifyMu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.healthListeners, id)
		c.mu.Unlock()
	}
}

// RequestRefresh asks the control plane to re-publish state. Concurrent
// calls share one request, and calls within the throttle window of the
// previous start return its result without a new request.
func (c *Coordinator) RequestRefresh(ctx context.Context) bool {
	c.refreshMu.Lock()
	if call := c.lastRefresh; call != nil && (!call.finished || c.now().Sub(c.lastStart) < c.throttle) {
		c.refreshMu.Unlock()
		c.metrics.RecordRefresh("throttled")
		select {
		case <-call.done:
			return call.result
		case <-ctx.Done():
			return false
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	c.lastRefresh = call
	c.lastStart = c.now()
	c.refreshMu.Unlock()

	result := false
	if c.refresher != nil {
		result = c.refresher.Refresh(ctx)
	}

	c.refreshMu.Lock()
	call.result = result
	call.finished = true
	c.refreshMu.Unlock()
	close(call.done)

	if result {
		c.metrics.RecordRefresh("success")
	} else {
		c.metrics.RecordRefresh("failure")
	}
	c.logger.Debug("Refresh requested", "success", result)
	return result
}

// ApplySettings starts, stops or restarts the connection for s. A change of
// URL, user or passcode while the previous settings were enabled forces a
// reconnect.
func (c *Coordinator) ApplySettings(s settings.Settings) error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	prev, hadPrev := c.settings, c.hasSettings
	c.settings, c.hasSettings = s, true

	if !s.Enabled {
		c.logger.Info("Connection disabled by settings")
		c.conn.Stop()
		return nil
	}

	cfg := c.conn.Config()
	cfg.URL, cfg.Login, cfg.Passcode = s.URL, s.User, s.Passcode
	c.conn.Reconfigure(cfg)

	if hadPrev && prev.Enabled && s.ConnectionChanged(prev) {
		c.logger.Info("Connection settings changed, reconnecting", "url", s.URL)
		c.conn.Stop()
	}
	return c.conn.Start()
}

func (c *Coordinator) onSchema(st schema.State) {
	c.mutate(func(h *Health) {
		h.SchemaStatus = st.Status
		h.SchemaError = st.ErrorMessage()
		c.schemaReady = st.Ready()
	})
}

func (c *Coordinator) onConnectionState(s stomp.State) {
	var reconnected, needSchema bool
	c.mutate(func(h *Health) {
		prev := h.ConnectionState
		h.ConnectionState = s
		if s != stomp.StateConnected || prev == stomp.StateConnected {
			return
		}
		reconnected = c.wasConnected && c.schemaReady
		needSchema = !c.schemaReady
		c.wasConnected = true
	})

	if reconnected {
		c.logger.Info("Reconnected with schema ready, requesting refresh")
		c.spawn(func(ctx context.Context) { c.RequestRefresh(ctx) })
	}
	if needSchema {
		c.spawn(func(ctx context.Context) { c.schema.Load(ctx) })
	}
}

func (c *Coordinator) onMessage(msg stomp.Message) {
	if msg.Envelope == nil {
		if len(msg.Errors) > 0 {
			c.mutate(func(h *Health) { h.InvalidFrameCount++ })
		}
		return
	}

	if c.states.Apply(msg.Envelope) == statestore.MissingSnapshot {
		c.logger.Debug("Delta without snapshot, requesting refresh", "scope", msg.Envelope.Scope.String())
		c.spawn(func(ctx context.Context) { c.RequestRefresh(ctx) })
	}
}

// mutate applies fn to the health and notifies listeners when it changed.
func (c *Coordinator) mutate(fn func(h *Health)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	prev := c.health
	fn(&c.health)
	next := c.health
	if next == prev {
		c.mu.Unlock()
		return
	}
	listeners := make([]func(Health), 0, len(c.healthListeners))
	for _, l := range c.healthListeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	c.updateMonitor(next)
	for _, l := range listeners {
		l(next)
	}
}

func (c *Coordinator) updateMonitor(h Health) {
	c.monitor.Update(PartSchema, schemaStatus(h))
	c.monitor.Update(PartConnection, connectionStatus(h))
	c.monitor.Update(PartIngest, ingestStatus(h))
}

// spawn runs fn in a tracked goroutine while the coordinator is running.
func (c *Coordinator) spawn(fn func(ctx context.Context)) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	ctx := c.ctx
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

func (c *Coordinator) sweep(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.states.SweepExpired(); n > 0 {
				c.logger.Info("Swept expired snapshots", "removed", n)
			}
		}
	}
}
