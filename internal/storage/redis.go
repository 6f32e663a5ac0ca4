package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second

	redisLogPrefix = "retrace:log:"
)

// RedisStore keeps each log as a single string value. A SET replaces the
// value atomically, so readers never see a partial log.
type RedisStore struct {
	client redis.UniversalClient

	closeOnce sync.Once
	closeErr  error
}

// NewRedisStore connects to Redis and pings it, retrying with backoff.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	client := newRedisClient(conf)
	s := &RedisStore{client: client}

	if err := s.pingWithRetry(ctx, conf.MaxRetries); err != nil {
		_ = client.Close()
		return nil, fault.Storage("storage.open", fmt.Errorf("redis ping failed: %w", err))
	}

	return s, nil
}

// Key returns the Redis key for a location.
func Key(location string) string {
	return redisLogPrefix + location
}

func (s *RedisStore) Read(ctx context.Context, location string) ([]byte, error) {
	data, err := s.client.Get(ctx, Key(location)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fault.Storage("storage.read", fmt.Errorf("%s: %w", location, ErrNotFound))
	}
	if err != nil {
		return nil, fault.Storage("storage.read", err)
	}
	return data, nil
}

func (s *RedisStore) Write(ctx context.Context, location string, data []byte) error {
	if err := s.client.Set(ctx, Key(location), data, 0).Err(); err != nil {
		return fault.Storage("storage.write", err)
	}
	return nil
}

// Check pings the server; Redis has no per-key write permission to test.
func (s *RedisStore) Check(ctx context.Context, _ string) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fault.Storage("storage.check", err)
	}
	return nil
}

// Close releases Redis resources. It is idempotent.
func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *RedisStore) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := s.client.Ping(ctx).Err(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	if lastErr == nil {
		lastErr = errors.New("ping failed with unknown error")
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}
