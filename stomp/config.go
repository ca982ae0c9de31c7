package stomp

import (
	"fmt"
	"net/url"
	"time"

	"github.com/c360/swarmpulse/errors"
)

// Defaults
const (
	DefaultHeartbeat      = 10 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultVirtualHost    = "/"
)

// DefaultTopics are the control-plane destinations subscribed on every connect.
var DefaultTopics = []string{
	"/exchange/ph.control/signal.#",
	"/exchange/ph.control/event.#",
}

// Config describes the broker connection.
type Config struct {
	// URL is the WebSocket endpoint (ws:// or wss://).
	URL      string
	Login    string
	Passcode string
	// Host is the STOMP virtual host.
	Host string
	// Topics are the destinations to subscribe to.
	Topics []string
	// Heartbeat is the outgoing heart-beat interval, and the interval the
	// client asks the broker to send at. Zero disables heart-beats.
	Heartbeat time.Duration
	// ConnectTimeout bounds the dial plus the wait for CONNECTED.
	ConnectTimeout time.Duration
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultVirtualHost
	}
	if c.Topics == nil {
		c.Topics = append([]string(nil), DefaultTopics...)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Heartbeat < 0 {
		c.Heartbeat = 0
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "url required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "parse url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapInvalid(fmt.Errorf("%w: scheme %q", errors.ErrInvalidConfig, u.Scheme),
			"Config", "Validate", "check url scheme")
	}
	return nil
}
