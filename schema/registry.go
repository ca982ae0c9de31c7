// Package schema fetches, caches and compiles the control-plane envelope JSON
// schema and exposes a validator once it is ready.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/c360/swarmpulse/errors"
	"github.com/c360/swarmpulse/metric"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxSchemaBytes      = 4 << 20
)

// Option configures a Registry
type Option func(*Registry)

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records schema status transitions.
func WithMetrics(m *metric.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithFetchTimeout bounds a single fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// Registry owns the schema state. Concurrent Load calls share one fetch.
type Registry struct {
	url          string
	client       *http.Client
	logger       *slog.Logger
	metrics      *metric.Metrics
	fetchTimeout time.Duration

	group singleflight.Group

	// baseCtx bounds every fetch; cancelled only by Close.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.RWMutex
	state     State
	compiled  *Validator // last successfully compiled validator, kept across errors
	listeners map[uint64]func(State)
	nextID    uint64

	// notifyMu orders state transitions with their notifications.
	notifyMu sync.Mutex
}

// NewRegistry creates a registry for the schema served at url.
func NewRegistry(url string, opts ...Option) (*Registry, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "schema", "NewRegistry", "schema url required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		url:          url,
		client:       &http.Client{},
		logger:       slog.Default().With("component", "schema-registry"),
		fetchTimeout: defaultFetchTimeout,
		baseCtx:      ctx,
		cancel:       cancel,
		listeners:    make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State returns the current state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Validator returns the compiled validator when the registry is ready.
func (r *Registry) Validator() (*Validator, bool) {
	st := r.State()
	return st.Validator, st.Ready()
}

// Subscribe registers a listener for every state transition and immediately
// delivers the current state. Listeners must not call Load synchronously.
func (r *Registry) Subscribe(fn func(State)) (unsubscribe func()) {
	r.notifyMu.Lock()
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	current := r.state
	r.mu.Unlock()
	fn(current)
	r.notifyMu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Load fetches the schema, sharing an in-flight fetch with concurrent callers.
// Cancelling ctx stops waiting but does not cancel the shared fetch; the
// current state is returned in that case.
func (r *Registry) Load(ctx context.Context) State {
	ch := r.group.DoChan("load", func() (any, error) {
		return r.fetch(), nil
	})

	select {
	case res := <-ch:
		return res.Val.(State)
	case <-ctx.Done():
		return r.State()
	}
}

// Close cancels any in-flight fetch and drops all listeners.
func (r *Registry) Close() {
	r.cancel()
	r.mu.Lock()
	r.listeners = make(map[uint64]func(State))
	r.mu.Unlock()
}

func (r *Registry) fetch() State {
	prev := r.State()
	r.transition(State{Status: StatusLoading, ETag: prev.ETag, Err: prev.Err})

	ctx, cancel := context.WithTimeout(r.baseCtx, r.fetchTimeout)
	defer cancel()

	v, etag, err := r.get(ctx, prev.ETag)
	if err != nil {
		r.logger.Warn("Schema load failed", "url", r.url, "error", err)
		return r.transition(State{Status: StatusError, ETag: prev.ETag, Err: err})
	}

	r.logger.Info("Schema ready", "etag", etag)
	return r.transition(State{Status: StatusReady, ETag: etag, Validator: v})
}

// get performs the conditional GET and returns the validator to use.
func (r *Registry) get(ctx context.Context, etag string) (*Validator, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, "", errors.WrapInvalid(err, "Registry", "fetch", "build request")
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrSchemaFetch, err), "Registry", "fetch", "request schema")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		r.mu.RLock()
		cached := r.compiled
		r.mu.RUnlock()
		if cached == nil {
			return nil, "", errors.WrapInvalid(
				fmt.Errorf("%w: not modified but no cached validator", errors.ErrSchemaInconsistent),
				"Registry", "fetch", "reuse cached schema")
		}
		return cached, etag, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", errors.WrapTransient(
			fmt.Errorf("%w: unexpected status %d", errors.ErrSchemaFetch, resp.StatusCode),
			"Registry", "fetch", "request schema")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSchemaBytes))
	if err != nil {
		return nil, "", errors.WrapTransient(err, "Registry", "fetch", "read schema body")
	}
	if !json.Valid(body) {
		return nil, "", errors.WrapInvalid(
			fmt.Errorf("%w: schema body is not JSON", errors.ErrParsingFailed),
			"Registry", "fetch", "parse schema")
	}

	v, err := Compile(body)
	if err != nil {
		return nil, "", err
	}

	r.mu.Lock()
	r.compiled = v
	r.mu.Unlock()
	return v, resp.Header.Get("ETag"), nil
}

// transition stores the new state and notifies listeners in order.
func (r *Registry) transition(next State) State {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	r.state = next
	listeners := make([]func(State), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	r.metrics.RecordSchemaStatus(int(next.Status))
	for _, fn := range listeners {
		fn(next)
	}
	return next
}
