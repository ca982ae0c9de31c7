package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/swarmpulse/errors"
)

// DefaultEnvPrefix prefixes environment overrides.
const DefaultEnvPrefix = "SWARMPULSE"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		if err := l.mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// mergeFile decodes a YAML layer onto cfg. Keys absent from the layer keep
// their current values; lists are replaced whole.
func (l *Loader) mergeFile(cfg *Config, path string) error {
	data, err := safeReadFile(path)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("parse %s", path))
	}
	return nil
}

// applyEnvOverrides applies <prefix>_* variables on top of the file layers.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) error {
		key := l.envPrefix + "_" + name
		val := l.getenv(key)
		if val == "" {
			return nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return err
		}
		*dst = val
		return nil
	}

	overrides := []struct {
		name string
		dst  *string
	}{
		{"SCHEMA_URL", &cfg.ControlPlane.SchemaURL},
		{"REFRESH_URL", &cfg.ControlPlane.RefreshURL},
		{"STOMP_URL", &cfg.Stomp.URL},
		{"STOMP_LOGIN", &cfg.Stomp.Login},
		{"STOMP_PASSCODE", &cfg.Stomp.Passcode},
		{"NATS_URL", &cfg.Relay.NATSURL},
		{"HTTP_ADDR", &cfg.HTTP.Addr},
		{"SETTINGS_FILE", &cfg.SettingsFile},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
	}
	for _, o := range overrides {
		if err := str(o.name, o.dst); err != nil {
			return err
		}
	}

	if val := l.getenv(l.envPrefix + "_STOMP_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_STOMP_ENABLED")
		}
		cfg.Stomp.Enabled = enabled
	}
	if val := l.getenv(l.envPrefix + "_STOMP_TOPICS"); val != "" {
		cfg.Stomp.Topics = splitList(val)
	}
	if val := l.getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_METRICS_PORT")
		}
		cfg.Metrics.Port = port
	}
	return nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "SaveToFile", "marshal yaml")
	}
	return safeWriteFile(path, data)
}
