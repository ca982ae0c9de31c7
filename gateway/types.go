package gateway

import (
	"github.com/c360/swarmpulse/errors"
)

// DefaultMaxRequestSize bounds request bodies when no limit is configured.
const DefaultMaxRequestSize = 1 << 20

// Config holds configuration for HTTP surfaces
type Config struct {
	// EnableCORS enables CORS headers (default: false, requires explicit cors_origins)
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (required when EnableCORS is true)
	// Use ["*"] for development only
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins,omitempty"`

	// MaxRequestSize limits request body size in bytes (default: 1MB)
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size,omitempty"`
}

// Validate ensures the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = DefaultMaxRequestSize
	}
	if c.MaxRequestSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot be negative")
	}
	if c.MaxRequestSize > 100<<20 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot exceed 100MB")
	}
	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"cors_origins required when enable_cors is true")
	}
	return nil
}

// AllowsOrigin reports whether origin may make cross-origin requests.
func (c *Config) AllowsOrigin(origin string) bool {
	if !c.EnableCORS {
		return false
	}
	for _, allowed := range c.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
