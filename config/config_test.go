package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/swarmpulse/errors"
)

func writeLayer(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func envMap(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5000, cfg.WireLog.MaxEntries)
	assert.Equal(t, int64(10<<20), cfg.WireLog.MaxBytes)
	assert.Equal(t, 30*time.Minute, cfg.State.TTL)
	assert.Equal(t, time.Minute, cfg.State.SweepInterval)
	assert.Equal(t, 2*time.Second, cfg.ControlPlane.RefreshThrottle)
}

func TestLoader_LayersMerge(t *testing.T) {
	base := writeLayer(t, "base.yaml", `
control_plane:
  schema_url: http://cp:8080/schema
stomp:
  url: ws://rabbit:15674/ws
  login: guest
  heartbeat: 5s
  topics:
    - /exchange/ph.control/event.#
wire_log:
  max_entries: 100
`)
	override := writeLayer(t, "override.yml", `
stomp:
  login: ops
state:
  ttl: 10m
`)

	l := NewLoader()
	l.getenv = envMap(nil)
	l.AddLayer(base)
	l.AddLayer(override)
	l.EnableValidation(true)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://cp:8080/schema", cfg.ControlPlane.SchemaURL)
	assert.Equal(t, Default().ControlPlane.RefreshURL, cfg.ControlPlane.RefreshURL, "untouched keys keep defaults")
	assert.Equal(t, "ws://rabbit:15674/ws", cfg.Stomp.URL)
	assert.Equal(t, "ops", cfg.Stomp.Login)
	assert.Equal(t, 5*time.Second, cfg.Stomp.Heartbeat)
	assert.Equal(t, []string{"/exchange/ph.control/event.#"}, cfg.Stomp.Topics)
	assert.True(t, cfg.Stomp.Enabled)
	assert.Equal(t, 100, cfg.WireLog.MaxEntries)
	assert.Equal(t, int64(10<<20), cfg.WireLog.MaxBytes)
	assert.Equal(t, 10*time.Minute, cfg.State.TTL)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"unknown key", func(t *testing.T) string { return writeLayer(t, "c.yaml", "stomp:\n  hearbeat: 5s\n") }},
		{"bad duration", func(t *testing.T) string { return writeLayer(t, "c.yaml", "state:\n  ttl: forever\n") }},
		{"not yaml extension", func(t *testing.T) string { return writeLayer(t, "c.json", "{}") }},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") }},
		{"directory", func(t *testing.T) string {
			dir := filepath.Join(t.TempDir(), "dir.yaml")
			require.NoError(t, os.Mkdir(dir, 0o755))
			return dir
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader()
			l.getenv = envMap(nil)
			_, err := l.LoadFile(tt.path(t))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoader_EmptyFileKeepsDefaults(t *testing.T) {
	l := NewLoader()
	l.getenv = envMap(nil)
	cfg, err := l.LoadFile(writeLayer(t, "empty.yaml", "\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoader_EnvOverrides(t *testing.T) {
	l := NewLoader()
	l.getenv = envMap(map[string]string{
		"SWARMPULSE_STOMP_URL":      "wss://broker/ws",
		"SWARMPULSE_STOMP_PASSCODE": "s3cret",
		"SWARMPULSE_STOMP_ENABLED":  "false",
		"SWARMPULSE_STOMP_TOPICS":   "/topic/a, /topic/b,",
		"SWARMPULSE_NATS_URL":       "nats://nats:4222",
		"SWARMPULSE_METRICS_PORT":   "9100",
		"SWARMPULSE_LOG_LEVEL":      "debug",
	})
	l.EnableValidation(true)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://broker/ws", cfg.Stomp.URL)
	assert.Equal(t, "s3cret", cfg.Stomp.Passcode)
	assert.False(t, cfg.Stomp.Enabled)
	assert.Equal(t, []string{"/topic/a", "/topic/b"}, cfg.Stomp.Topics)
	assert.Equal(t, "nats://nats:4222", cfg.Relay.NATSURL)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_BadEnv(t *testing.T) {
	for key, val := range map[string]string{
		"SWARMPULSE_STOMP_ENABLED": "maybe",
		"SWARMPULSE_METRICS_PORT":  "ninety",
		"SWARMPULSE_HTTP_ADDR":     "bad\x00addr",
	} {
		t.Run(key, func(t *testing.T) {
			l := NewLoader()
			l.getenv = envMap(map[string]string{key: val})
			_, err := l.Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing schema url", func(c *Config) { c.ControlPlane.SchemaURL = "" }},
		{"schema url scheme", func(c *Config) { c.ControlPlane.SchemaURL = "ftp://cp/schema" }},
		{"stomp url scheme", func(c *Config) { c.Stomp.URL = "http://rabbit/ws" }},
		{"enabled without url", func(c *Config) { c.Stomp.URL = "" }},
		{"relay scheme", func(c *Config) { c.Relay.NATSURL = "http://nats" }},
		{"relay prefix wildcard", func(c *Config) { c.Relay.NATSURL = "nats://n:4222"; c.Relay.SubjectPrefix = "a.>" }},
		{"max entries", func(c *Config) { c.WireLog.MaxEntries = 0 }},
		{"max bytes", func(c *Config) { c.WireLog.MaxBytes = -1 }},
		{"ttl", func(c *Config) { c.State.TTL = 0 }},
		{"sweep", func(c *Config) { c.State.SweepInterval = 0 }},
		{"heartbeat", func(c *Config) { c.Stomp.Heartbeat = -time.Second }},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }},
		{"http addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"log level", func(c *Config) { c.Log.Level = "trace" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"tls min version", func(c *Config) { c.Stomp.TLS.MinVersion = "1.1" }},
		{"tls cert without key", func(c *Config) { c.Stomp.TLS.CertFile = "/etc/client.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}

	cfg := Default()
	cfg.Stomp.Enabled = false
	cfg.Stomp.URL = ""
	assert.NoError(t, cfg.Validate(), "disabled connection needs no url")
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	want := Default()
	want.Stomp.Login = "guest"
	want.State.TTL = 5 * time.Minute
	require.NoError(t, want.SaveToFile(path))

	l := NewLoader()
	l.getenv = envMap(nil)
	got, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, want.SaveToFile(filepath.Join(t.TempDir(), "out.txt")))
}

func TestSaveToFile_RoundTripTLS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tls.yaml")
	want := Default()
	want.Stomp.URL = "wss://broker.example/ws"
	want.Stomp.TLS.CAFiles = []string{"/etc/swarmpulse/ca.pem"}
	want.Stomp.TLS.MinVersion = "1.3"
	require.NoError(t, want.SaveToFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ca_files")

	l := NewLoader()
	l.getenv = envMap(nil)
	got, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// an empty CA list is omitted and loads back as nil
	require.NoError(t, Default().SaveToFile(path))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ca_files")
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	cfg.Stomp.TLS.CAFiles = []string{"/etc/ca.pem"}
	cp := cfg.Clone()
	cp.Stomp.Topics[0] = "/topic/mutated"
	cp.Stomp.TLS.CAFiles[0] = "/tmp/other.pem"
	assert.NotEqual(t, "/topic/mutated", cfg.Stomp.Topics[0])
	assert.Equal(t, "/etc/ca.pem", cfg.Stomp.TLS.CAFiles[0])

	var nilCfg *Config
	assert.Equal(t, Default(), nilCfg.Clone())
}
