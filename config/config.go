package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/c360/swarmpulse/errors"
	"github.com/c360/swarmpulse/pkg/tlsutil"
)

// Config is the complete application configuration.
type Config struct {
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Stomp        StompConfig        `yaml:"stomp"`
	WireLog      WireLogConfig      `yaml:"wire_log"`
	State        StateConfig        `yaml:"state"`
	Relay        RelayConfig        `yaml:"relay"`
	HTTP         HTTPConfig         `yaml:"http"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Log          LogConfig          `yaml:"log"`
	// SettingsFile is the watched YAML file holding the connection settings.
	// Empty keeps the settings in memory only.
	SettingsFile string `yaml:"settings_file"`
}

// ControlPlaneConfig locates the control-plane HTTP endpoints.
type ControlPlaneConfig struct {
	SchemaURL       string        `yaml:"schema_url"`
	RefreshURL      string        `yaml:"refresh_url"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	RefreshThrottle time.Duration `yaml:"refresh_throttle"`
}

// StompConfig describes the broker connection.
type StompConfig struct {
	URL                 string        `yaml:"url"`
	Login               string        `yaml:"login"`
	Passcode            string        `yaml:"passcode"`
	Enabled             bool          `yaml:"enabled"`
	Host                string        `yaml:"host"`
	Topics              []string      `yaml:"topics"`
	Heartbeat           time.Duration `yaml:"heartbeat"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	DestinationPrefixes []string      `yaml:"destination_prefixes"`
	// TLS applies to wss:// URLs only.
	TLS tlsutil.ClientConfig `yaml:"tls"`
}

// WireLogConfig bounds the wire log.
type WireLogConfig struct {
	MaxEntries int   `yaml:"max_entries"`
	MaxBytes   int64 `yaml:"max_bytes"`
}

// StateConfig controls snapshot expiry.
type StateConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RelayConfig enables republishing decoded envelopes to NATS.
type RelayConfig struct {
	// NATSURL empty disables the relay.
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// HTTPConfig is the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig is the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ControlPlane: ControlPlaneConfig{
			SchemaURL:       "http://localhost:8080/api/control-plane/schema/envelope",
			RefreshURL:      "http://localhost:8080/api/control-plane/refresh",
			FetchTimeout:    10 * time.Second,
			RefreshThrottle: 2 * time.Second,
		},
		Stomp: StompConfig{
			URL:            "ws://localhost:15674/ws",
			Enabled:        true,
			Host:           "/",
			Topics:         []string{"/exchange/ph.control/signal.#", "/exchange/ph.control/event.#"},
			Heartbeat:      10 * time.Second,
			ConnectTimeout: 10 * time.Second,
			DestinationPrefixes: []string{
				"/exchange/ph.control/", "/exchange/", "/topic/", "/queue/",
			},
		},
		WireLog: WireLogConfig{
			MaxEntries: 5000,
			MaxBytes:   10 << 20,
		},
		State: StateConfig{
			TTL:           30 * time.Minute,
			SweepInterval: 60 * time.Second,
		},
		Relay: RelayConfig{
			SubjectPrefix: "swarmpulse",
		},
		HTTP: HTTPConfig{
			Addr: ":8081",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validateURL("control_plane.schema_url", c.ControlPlane.SchemaURL, true, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("control_plane.refresh_url", c.ControlPlane.RefreshURL, false, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("stomp.url", c.Stomp.URL, c.Stomp.Enabled, "ws", "wss"); err != nil {
		return err
	}
	if err := c.Stomp.TLS.Validate(); err != nil {
		return err
	}
	if err := validateURL("relay.nats_url", c.Relay.NATSURL, false, "nats", "tls"); err != nil {
		return err
	}

	switch {
	case c.WireLog.MaxEntries <= 0:
		return invalid("wire_log.max_entries must be positive")
	case c.WireLog.MaxBytes <= 0:
		return invalid("wire_log.max_bytes must be positive")
	case c.State.TTL <= 0:
		return invalid("state.ttl must be positive")
	case c.State.SweepInterval <= 0:
		return invalid("state.sweep_interval must be positive")
	case c.Stomp.Heartbeat < 0:
		return invalid("stomp.heartbeat must not be negative")
	case c.ControlPlane.RefreshThrottle < 0:
		return invalid("control_plane.refresh_throttle must not be negative")
	case c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535):
		return invalid(fmt.Sprintf("metrics.port %d out of range", c.Metrics.Port))
	case c.HTTP.Addr == "":
		return invalid("http.addr is required")
	}

	if c.Relay.NATSURL != "" && !isValidSubjectPart(c.Relay.SubjectPrefix) {
		return invalid(fmt.Sprintf("relay.subject_prefix %q is not a valid NATS subject token", c.Relay.SubjectPrefix))
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("log.level %q unknown", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return invalid(fmt.Sprintf("log.format %q unknown", c.Log.Format))
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "Config", "Validate", "check field")
}

func validateURL(field, raw string, required bool, schemes ...string) error {
	if raw == "" {
		if required {
			return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrMissingConfig, field), "Config", "Validate", "check field")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return invalid(fmt.Sprintf("%s: %v", field, err))
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return invalid(fmt.Sprintf("%s: scheme %q not allowed", field, u.Scheme))
}

// isValidSubjectPart checks a NATS subject token: letters, digits, dash,
// underscore and dot separators, no wildcards.
func isValidSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	cp := *c
	cp.Stomp.Topics = append([]string(nil), c.Stomp.Topics...)
	cp.Stomp.DestinationPrefixes = append([]string(nil), c.Stomp.DestinationPrefixes...)
	cp.Stomp.TLS.CAFiles = append([]string(nil), c.Stomp.TLS.CAFiles...)
	return &cp
}
