package config

import internalconfig "github.com/SmitUplenchwar2687/Retrace/internal/config"

// Config is the top-level configuration for a Retrace session.
type Config = internalconfig.Config

// RecordingConfig names the persisted log.
type RecordingConfig = internalconfig.RecordingConfig

// ReplayConfig holds player settings.
type ReplayConfig = internalconfig.ReplayConfig

// ServerConfig holds HTTP server settings.
type ServerConfig = internalconfig.ServerConfig

// LoggingConfig holds structured logging settings.
type LoggingConfig = internalconfig.LoggingConfig

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// Load builds the effective config from defaults, the file at path (if
// any) and RETRACE_* environment variables.
func Load(path string) (Config, error) {
	return internalconfig.Load(path)
}

// LoadFile reads a YAML or JSON config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
