// Package config loads Retrace settings from a YAML or JSON file and
// RETRACE_* environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/SmitUplenchwar2687/Retrace/internal/codec"
	"github.com/SmitUplenchwar2687/Retrace/internal/limiter"
	"github.com/SmitUplenchwar2687/Retrace/internal/replay"
	"github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "RETRACE_"

// Config is the top-level configuration for a Retrace session.
type Config struct {
	Recording RecordingConfig `json:"recording" yaml:"recording" envPrefix:"RECORDING_"`
	Storage   storage.Config  `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	Replay    ReplayConfig    `json:"replay" yaml:"replay" envPrefix:"REPLAY_"`
	Server    ServerConfig    `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging" envPrefix:"LOGGING_"`
}

// RecordingConfig names the persisted log shared by record and play.
type RecordingConfig struct {
	Location string `json:"location" yaml:"location" env:"LOCATION"`
	// Format is json or cbor. Empty infers it from the location's extension.
	Format string `json:"format,omitempty" yaml:"format,omitempty" env:"FORMAT"`
}

// Start gate names.
const (
	StartImmediate = "immediate"
	StartEnter     = "enter"
)

// ReplayConfig holds player settings.
type ReplayConfig struct {
	Mode         string        `json:"mode" yaml:"mode" env:"MODE"`
	LagThreshold time.Duration `json:"lag_threshold" yaml:"lag_threshold" env:"LAG_THRESHOLD"`
	Start        string        `json:"start" yaml:"start" env:"START"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level    string         `json:"level" yaml:"level" env:"LEVEL"`
	Format   string         `json:"format" yaml:"format" env:"FORMAT"`
	Throttle limiter.Config `json:"throttle" yaml:"throttle" envPrefix:"THROTTLE_"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Recording: RecordingConfig{
			Location: "inputs.json",
		},
		Storage: storage.DefaultConfig(),
		Replay: ReplayConfig{
			Mode:         string(replay.Live),
			LagThreshold: 250 * time.Millisecond,
			Start:        StartEnter,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Throttle: limiter.DefaultConfig(),
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Recording.Location) == "" {
		return fmt.Errorf("recording.location is required")
	}
	if c.Recording.Format != "" {
		if _, err := codec.ParseFormat(c.Recording.Format); err != nil {
			return fmt.Errorf("recording.format: %w", err)
		}
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "", storage.BackendFile, storage.BackendMemory, storage.BackendRedis, storage.BackendSQLite:
	default:
		return fmt.Errorf("unknown storage.backend %q, must be one of: file, memory, redis, sqlite", c.Storage.Backend)
	}
	switch strings.ToLower(c.Storage.Compression) {
	case "", storage.CompressionNone, storage.CompressionZstd:
	default:
		return fmt.Errorf("unknown storage.compression %q, must be one of: none, zstd", c.Storage.Compression)
	}

	if _, err := replay.ParseMode(c.Replay.Mode); err != nil {
		return fmt.Errorf("replay.mode: %w", err)
	}
	if c.Replay.LagThreshold < 0 {
		return fmt.Errorf("replay.lag_threshold must not be negative, got %s", c.Replay.LagThreshold)
	}
	switch c.Replay.Start {
	case "", StartImmediate, StartEnter:
	default:
		return fmt.Errorf("unknown replay.start %q, must be one of: immediate, enter", c.Replay.Start)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q, must be one of: text, json", c.Logging.Format)
	}
	if err := c.Logging.Throttle.Validate(); err != nil {
		return fmt.Errorf("logging.throttle: %w", err)
	}
	return nil
}

// ParseLevel parses a slog level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging.level %q, must be one of: debug, info, warn, error", s)
	}
}

// LoadFile reads a YAML (.yaml, .yml) or JSON config file and merges it
// with defaults. Fields not specified in the file retain their default
// values; unknown fields are an error. Durations are written as strings
// such as "250ms".
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if !isYAML(path) {
		if data, err = jsonToYAML(data); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any RETRACE_* environment variables that
// are set, e.g. RETRACE_STORAGE_BACKEND or RETRACE_REPLAY_LAG_THRESHOLD.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load builds the effective config: defaults, then the file at path (if
// any), then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// WriteExample writes the default config to path, as YAML or JSON by
// extension.
func WriteExample(path string) error {
	data, err := Marshal(Default(), isYAML(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders cfg as YAML or indented JSON, with durations as strings.
func Marshal(cfg Config, asYAML bool) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if asYAML {
		return data, nil
	}

	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return append(out, '\n'), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// jsonToYAML re-encodes a JSON document as YAML so both formats share one
// decoder, including duration parsing and unknown-field checks.
func jsonToYAML(data []byte) ([]byte, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}
