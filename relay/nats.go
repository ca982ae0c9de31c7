package relay

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/swarmpulse/errors"
)

// Connection defaults
const (
	DefaultReconnectWait  = 2 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultFlushTimeout   = 2 * time.Second
)

// NATSPublisher publishes over a core NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS at url. The connection reconnects forever in the background.
func Connect(url, clientName string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default().With("component", "relay")
	}
	p := &NATSPublisher{logger: logger}

	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(DefaultReconnectWait),
		nats.Timeout(DefaultConnectTimeout),
		nats.DisconnectErrHandler(p.handleDisconnect),
		nats.ReconnectHandler(p.handleReconnect),
		nats.ErrorHandler(p.handleError),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSPublisher", "Connect", "establish connection")
	}
	p.conn = conn
	logger.Info("Connected to NATS", "url", conn.ConnectedUrlRedacted())
	return p, nil
}

// Publish sends data on subject.
func (p *NATSPublisher) Publish(subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

// Connected reports whether the connection is currently up.
func (p *NATSPublisher) Connected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil || p.conn.IsClosed() {
		return
	}
	if err := p.conn.FlushTimeout(DefaultFlushTimeout); err != nil {
		p.logger.Debug("NATS flush on close failed", "error", err)
	}
	p.conn.Close()
}

func (p *NATSPublisher) handleDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		p.logger.Warn("NATS disconnected", "error", err)
	}
}

func (p *NATSPublisher) handleReconnect(c *nats.Conn) {
	p.logger.Info("NATS reconnected", "url", c.ConnectedUrlRedacted())
}

func (p *NATSPublisher) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	p.logger.Error("NATS error", "error", err)
}
