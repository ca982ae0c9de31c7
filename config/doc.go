// Package config loads swarmpulse configuration from layered YAML files and
// environment overrides.
//
// Loading starts from built-in defaults, merges each YAML layer in order
// (only keys present in a layer override earlier values), then applies
// SWARMPULSE_* environment variables:
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/swarmpulse/config.yaml")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Durations are written as Go duration strings ("10s", "30m").
package config
