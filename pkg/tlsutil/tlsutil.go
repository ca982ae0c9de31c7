// Package tlsutil builds client TLS configuration for secure broker connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/swarmpulse/errors"
)

// ClientConfig holds TLS settings for outbound wss:// connections.
// The system CA bundle is always trusted; CAFiles are additional CAs.
type ClientConfig struct {
	CAFiles            []string `yaml:"ca_files,omitempty" json:"ca_files,omitempty"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify" json:"insecure_skip_verify,omitempty"` // DEV/TEST ONLY
	MinVersion         string   `yaml:"min_version" json:"min_version,omitempty"`                   // "1.2" or "1.3"

	// Client certificate for brokers that require mTLS.
	CertFile string `yaml:"cert_file" json:"cert_file,omitempty"`
	KeyFile  string `yaml:"key_file" json:"key_file,omitempty"`
}

// IsZero reports whether no TLS setting was provided.
func (c ClientConfig) IsZero() bool {
	return len(c.CAFiles) == 0 && !c.InsecureSkipVerify && c.MinVersion == "" &&
		c.CertFile == "" && c.KeyFile == ""
}

// Validate checks the configuration without touching the filesystem.
func (c ClientConfig) Validate() error {
	switch c.MinVersion {
	case "", "1.2", "1.3":
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: min_version %q", errors.ErrInvalidConfig, c.MinVersion),
			"tlsutil", "Validate", "check min_version")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.WrapInvalid(fmt.Errorf("%w: cert_file and key_file must be set together", errors.ErrInvalidConfig),
			"tlsutil", "Validate", "check client certificate")
	}
	return nil
}

// LoadClientTLSConfig creates a tls.Config from cfg. It returns nil for a
// zero config so callers keep the library defaults.
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil",
				"LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}
	tlsConfig.RootCAs = rootCAs

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Operators opt into this explicitly.
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// parseTLSVersion converts version string to crypto/tls constant
// Returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
