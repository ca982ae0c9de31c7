package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/c360/swarmpulse/errors"
)

const (
	// Security limits for configuration
	maxConfigSize = 1 << 20 // 1MB max config file size
	maxEnvVarLen  = 10000   // Maximum environment variable value length
	maxPathLen    = 4096    // Maximum file path length
)

// validateConfigPath does basic path validation
func validateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty config path", errors.ErrInvalidConfig)
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("%w: path too long: %d > %d", errors.ErrInvalidConfig, len(path), maxPathLen)
	}
	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		return fmt.Errorf("%w: only YAML config files allowed: %s", errors.ErrInvalidConfig, path)
	}
	return nil
}

// safeReadFile reads a config file with security validation
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, errors.WrapInvalid(err, "config", "safeReadFile", "validate path")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "safeReadFile", "stat config file")
	}
	if info.Size() > maxConfigSize {
		return nil, errors.WrapInvalid(fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize),
			"config", "safeReadFile", "check size")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(fmt.Errorf("not a regular file: %s", path), "config", "safeReadFile", "check mode")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "config", "safeReadFile", "read config file")
	}
	return data, nil
}

// safeWriteFile writes a config file with security validation
func safeWriteFile(path string, data []byte) error {
	if err := validateConfigPath(path); err != nil {
		return errors.WrapInvalid(err, "config", "safeWriteFile", "validate path")
	}
	if len(data) > maxConfigSize {
		return errors.WrapInvalid(fmt.Errorf("config data too large: %d bytes > %d", len(data), maxConfigSize),
			"config", "safeWriteFile", "check size")
	}
	// owner read/write only, the file may hold broker credentials
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapTransient(err, "config", "safeWriteFile", "write config file")
	}
	return nil
}

// validateEnvVar does basic environment variable validation
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return errors.WrapInvalid(fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen),
			"config", "validateEnvVar", "check length")
	}
	if strings.Contains(value, "\x00") {
		return errors.WrapInvalid(fmt.Errorf("null byte in environment variable %s", key),
			"config", "validateEnvVar", "check content")
	}
	return nil
}
