// Package storage persists encoded sample logs under a named location.
package storage

import (
	"context"
	"errors"
	"time"
)

// Store persists opaque log bytes under a location. The recorder is the
// only writer and the player only reads; a location is never written
// concurrently. Every error returned by a Store satisfies
// fault.IsStorageUnavailable.
type Store interface {
	// Read returns the bytes stored at location. A missing location is an
	// error wrapping ErrNotFound.
	Read(ctx context.Context, location string) ([]byte, error)

	// Write replaces the bytes at location atomically: readers observe
	// either the previous content or data, never a partial write.
	Write(ctx context.Context, location string, data []byte) error

	// Check reports whether location can currently be written.
	Check(ctx context.Context, location string) error

	// Close releases backend resources. It is idempotent.
	Close() error
}

// ErrNotFound is wrapped by Read when nothing is stored at the location.
var ErrNotFound = errors.New("log not found")

// Backend names.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Compression names.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Config selects and configures a storage backend.
type Config struct {
	Backend     string       `json:"backend" yaml:"backend" env:"BACKEND"`
	Compression string       `json:"compression" yaml:"compression" env:"COMPRESSION"`
	File        FileConfig   `json:"file" yaml:"file" envPrefix:"FILE_"`
	Redis       RedisConfig  `json:"redis" yaml:"redis" envPrefix:"REDIS_"`
	SQLite      SQLiteConfig `json:"sqlite" yaml:"sqlite" envPrefix:"SQLITE_"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir is the base directory for relative locations. Empty means the
	// working directory.
	Dir string `json:"dir" yaml:"dir" env:"DIR"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Host         string        `json:"host" yaml:"host" env:"HOST"`
	Port         int           `json:"port" yaml:"port" env:"PORT"`
	Password     string        `json:"password,omitempty" yaml:"password,omitempty" env:"PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"DB"`
	Cluster      bool          `json:"cluster" yaml:"cluster" env:"CLUSTER"`
	ClusterNodes []string      `json:"cluster_nodes,omitempty" yaml:"cluster_nodes,omitempty" env:"CLUSTER_NODES"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"POOL_SIZE"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries" env:"MAX_RETRIES"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path" env:"PATH"`
}

// DefaultConfig returns the file backend without compression.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendFile,
		Compression: CompressionNone,
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			PoolSize:    defaultRedisPoolSize,
			MaxRetries:  defaultRedisMaxRetries,
			DialTimeout: defaultRedisDialTimeout,
		},
		SQLite: SQLiteConfig{
			Path: "retrace.db",
		},
	}
}
