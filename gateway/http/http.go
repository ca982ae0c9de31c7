// Package http exposes the ingestion pipeline over HTTP: health, the wire
// log and its export, state snapshots, refresh and connection settings.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360/swarmpulse/coordinator"
	"github.com/c360/swarmpulse/errors"
	"github.com/c360/swarmpulse/gateway"
	"github.com/c360/swarmpulse/health"
	"github.com/c360/swarmpulse/settings"
	"github.com/c360/swarmpulse/statestore"
	"github.com/c360/swarmpulse/wirelog"
)

// Pipeline is the coordinator as seen by the HTTP surface.
type Pipeline interface {
	Health() coordinator.Health
	Status() health.Status
	RequestRefresh(ctx context.Context) bool
}

// WireLog is the wire log as seen by the HTTP surface.
type WireLog interface {
	Entries() []wirelog.Entry
	Clear()
	WriteLines(w io.Writer) error
	WriteGzip(w io.Writer) error
}

// Snapshots lists the current state snapshots.
type Snapshots interface {
	Snapshots() []statestore.Snapshot
}

// SettingsStore holds the connection settings.
type SettingsStore interface {
	Get() settings.Settings
	Set(s settings.Settings) (bool, error)
}

// redactedPasscode is sent in place of the passcode and accepted back as "unchanged".
const redactedPasscode = "********"

// Option configures a Handler
type Option func(*Handler)

// WithConfig sets CORS and body limits.
func WithConfig(cfg gateway.Config) Option {
	return func(h *Handler) {
		h.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSettingsPersister is called after a successful settings update.
func WithSettingsPersister(fn func(settings.Settings) error) Option {
	return func(h *Handler) {
		h.persist = fn
	}
}

// Handler serves the pipeline API.
type Handler struct {
	pipeline  Pipeline
	wireLog   WireLog
	snapshots Snapshots
	settings  SettingsStore
	persist   func(settings.Settings) error
	config    gateway.Config
	logger    *slog.Logger
}

var _ gateway.HTTPHandler = (*Handler)(nil)

// NewHandler creates the API handler.
func NewHandler(p Pipeline, wl WireLog, snaps Snapshots, st SettingsStore, opts ...Option) (*Handler, error) {
	if p == nil || wl == nil || snaps == nil || st == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Handler", "NewHandler", "all collaborators are required")
	}
	h := &Handler{
		pipeline:  p,
		wireLog:   wl,
		snapshots: snaps,
		settings:  st,
		logger:    slog.Default().With("component", "http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.config.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// RegisterHTTPHandlers registers the API routes under prefix.
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	routes := []struct {
		method string
		path   string
		fn     http.HandlerFunc
	}{
		{http.MethodGet, "health", h.handleHealth},
		{http.MethodGet, "wirelog", h.handleWireLog},
		{http.MethodDelete, "wirelog", h.handleClearWireLog},
		{http.MethodGet, "wirelog/export", h.handleExport},
		{http.MethodGet, "snapshots", h.handleSnapshots},
		{http.MethodPost, "refresh", h.handleRefresh},
		{http.MethodGet, "settings", h.handleGetSettings},
		{http.MethodPut, "settings", h.handlePutSettings},
	}
	for _, r := range routes {
		mux.Handle(r.method+" "+prefix+r.path, h.wrap(r.fn))
	}

	if h.config.EnableCORS {
		mux.Handle(http.MethodOptions+" "+prefix, h.wrap(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}
}

// wrap adds request IDs, CORS headers and a body limit.
func (h *Handler) wrap(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", getOrGenerateRequestID(r))
		if origin := r.Header.Get("Origin"); origin != "" && h.config.AllowsOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxRequestSize)
		}
		next(w, r)
	})
}

// getOrGenerateRequestID extracts the request ID from headers or generates a new one
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

type healthResponse struct {
	Status   health.Status      `json:"status"`
	Pipeline coordinator.Health `json:"pipeline"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := h.pipeline.Status()
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, healthResponse{Status: status, Pipeline: h.pipeline.Health()})
}

func (h *Handler) handleWireLog(w http.ResponseWriter, r *http.Request) {
	entries := h.wireLog.Entries()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}
	if r.URL.Query().Get("invalid") == "1" {
		filtered := make([]wirelog.Entry, 0, len(entries))
		for _, e := range entries {
			if !e.Valid() {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleClearWireLog(w http.ResponseWriter, _ *http.Request) {
	h.wireLog.Clear()
	h.logger.Info("Wire log cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	var err error
	if r.URL.Query().Get("gzip") == "1" {
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="wirelog-%s.jsonl.gz"`, stamp))
		err = h.wireLog.WriteGzip(w)
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="wirelog-%s.jsonl"`, stamp))
		err = h.wireLog.WriteLines(w)
	}
	if err != nil {
		// headers are gone, the client sees a truncated body
		h.logger.Warn("Wire log export failed", "error", err)
	}
}

func (h *Handler) handleSnapshots(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.snapshots.Snapshots())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ok := h.pipeline.RequestRefresh(r.Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusBadGateway
	}
	h.writeJSON(w, code, map[string]bool{"success": ok})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.settings.Get().Redacted())
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		h.writeErr(w, errors.WrapInvalid(err, "Handler", "handlePutSettings", "decode body"))
		return
	}

	current := h.settings.Get()
	if next.Passcode == redactedPasscode {
		next.Passcode = current.Passcode
	}

	changed, err := h.settings.Set(next)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if changed && h.persist != nil {
		if err := h.persist(next); err != nil {
			h.logger.Error("Persisting settings failed", "error", err)
			h.writeErr(w, err)
			return
		}
	}
	if changed {
		h.logger.Info("Settings updated", "enabled", next.Enabled, "url", next.URL)
	}
	h.writeJSON(w, http.StatusOK, next.Redacted())
}

// writeErr maps a classified error to a status and a safe message.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	h.writeError(w, mapErrorToHTTPStatus(err), sanitizeError(err))
}

// mapErrorToHTTPStatus maps classified errors to HTTP status codes
func mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		if strings.Contains(err.Error(), "timeout") {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeError returns a safe error message for external clients
func sanitizeError(err error) string {
	switch {
	case err == nil:
		return "internal server error"
	case errors.IsInvalid(err):
		return "invalid request: " + health.Sanitize(rootMessage(err))
	case errors.IsTransient(err):
		if strings.Contains(err.Error(), "timeout") {
			return "request timeout"
		}
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}

// rootMessage returns the innermost error text.
func rootMessage(err error) string {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("Writing response failed", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{
		"error":  message,
		"status": status,
	})
}
