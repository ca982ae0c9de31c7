// Package settings holds the user-editable broker connection settings and
// keeps them in sync with a YAML file on disk.
package settings

import (
	"fmt"
	"net/url"

	"github.com/c360/swarmpulse/errors"
)

// Settings are the broker connection settings.
type Settings struct {
	URL      string `yaml:"url" json:"url"`
	User     string `yaml:"user" json:"user"`
	Passcode string `yaml:"passcode" json:"passcode"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
}

// ConnectionChanged reports whether the fields that identify a broker
// session differ between s and prev.
func (s Settings) ConnectionChanged(prev Settings) bool {
	return s.URL != prev.URL || s.User != prev.User || s.Passcode != prev.Passcode
}

// Validate checks the settings. A disabled connection needs no URL.
func (s Settings) Validate() error {
	if !s.Enabled && s.URL == "" {
		return nil
	}
	if s.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Settings", "Validate", "url required when enabled")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Settings", "Validate", "parse url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapInvalid(fmt.Errorf("%w: scheme %q", errors.ErrInvalidConfig, u.Scheme),
			"Settings", "Validate", "check url scheme")
	}
	return nil
}

// Redacted returns a copy with the passcode masked.
func (s Settings) Redacted() Settings {
	if s.Passcode != "" {
		s.Passcode = "********"
	}
	return s
}
