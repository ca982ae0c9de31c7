package coordinator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultRefreshTimeout bounds one refresh request.
const DefaultRefreshTimeout = 10 * time.Second

// Refresher asks the control plane to re-publish current state.
// Implementations swallow failures and report false.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) bool

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context) bool { return f(ctx) }

// HTTPRefresher POSTs an empty body to a refresh endpoint.
type HTTPRefresher struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// HTTPRefresherOption configures an HTTPRefresher
type HTTPRefresherOption func(*HTTPRefresher)

// WithRefreshClient sets the HTTP client.
func WithRefreshClient(c *http.Client) HTTPRefresherOption {
	return func(r *HTTPRefresher) {
		if c != nil {
			r.client = c
		}
	}
}

// WithRefreshTimeout sets the per-request timeout.
func WithRefreshTimeout(d time.Duration) HTTPRefresherOption {
	return func(r *HTTPRefresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewHTTPRefresher creates a refresher for url.
func NewHTTPRefresher(url string, opts ...HTTPRefresherOption) *HTTPRefresher {
	r := &HTTPRefresher{
		url:     url,
		client:  http.DefaultClient,
		timeout: DefaultRefreshTimeout,
		logger:  slog.Default().With("component", "refresher"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh reports whether the endpoint answered 2xx.
func (r *HTTPRefresher) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, http.NoBody)
	if err != nil {
		r.logger.Warn("Refresh request invalid", "error", err)
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("Refresh request failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Warn("Refresh rejected", "status", resp.StatusCode)
		return false
	}
	return true
}
