package settings

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/c360/swarmpulse/errors"
)

// Load reads settings from a YAML file. A missing file yields zero settings.
func Load(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, errors.WrapTransient(err, "settings", "Load", "read file")
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.WrapInvalid(err, "settings", "Load", "parse yaml")
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Save writes settings atomically via a temporary file in the same directory.
func Save(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.WrapInvalid(err, "settings", "Save", "marshal yaml")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapTransient(err, "settings", "Save", "create directory")
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return errors.WrapTransient(err, "settings", "Save", "create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.WrapTransient(err, "settings", "Save", "chmod temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WrapTransient(err, "settings", "Save", "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapTransient(err, "settings", "Save", "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapTransient(err, "settings", "Save", "rename temp file")
	}
	return nil
}
