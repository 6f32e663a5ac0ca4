package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/SmitUplenchwar2687/Retrace/internal/storage"
)

type storageOptions struct {
	backend           string
	compression       string
	fileDir           string
	sqlitePath        string
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
	redisPoolSize     int
	redisMaxRetries   int
	redisDialTimeout  time.Duration
}

func defaultStorageOptions() storageOptions {
	def := storage.DefaultConfig()
	return storageOptions{
		backend:          def.Backend,
		compression:      def.Compression,
		fileDir:          def.File.Dir,
		sqlitePath:       def.SQLite.Path,
		redisHost:        def.Redis.Host,
		redisPort:        def.Redis.Port,
		redisDB:          def.Redis.DB,
		redisPoolSize:    def.Redis.PoolSize,
		redisMaxRetries:  def.Redis.MaxRetries,
		redisDialTimeout: def.Redis.DialTimeout,
	}
}

func (o *storageOptions) addFlags(flags *pflag.FlagSet) {
	def := defaultStorageOptions()
	flags.StringVar(&o.backend, "storage", def.backend, "storage backend (file, memory, redis, sqlite)")
	flags.StringVar(&o.compression, "compression", def.compression, "log compression (none, zstd)")
	flags.StringVar(&o.fileDir, "storage-dir", def.fileDir, "base directory for relative locations (file backend)")
	flags.StringVar(&o.sqlitePath, "sqlite-path", def.sqlitePath, "database path (sqlite backend)")
	flags.StringVar(&o.redisHost, "redis-host", def.redisHost, "redis host (or host:port)")
	flags.IntVar(&o.redisPort, "redis-port", def.redisPort, "redis port")
	flags.StringVar(&o.redisPassword, "redis-password", "", "redis password")
	flags.IntVar(&o.redisDB, "redis-db", def.redisDB, "redis database index")
	flags.BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	flags.StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	flags.IntVar(&o.redisPoolSize, "redis-pool-size", def.redisPoolSize, "redis connection pool size")
	flags.IntVar(&o.redisMaxRetries, "redis-max-retries", def.redisMaxRetries, "redis max retries")
	flags.DurationVar(&o.redisDialTimeout, "redis-dial-timeout", def.redisDialTimeout, "redis dial timeout")
}

func (o *storageOptions) applyConfigIfUnset(flags *pflag.FlagSet, cfg *storage.Config) {
	if cfg == nil {
		return
	}

	if !flags.Changed("storage") {
		o.backend = cfg.Backend
	}
	if !flags.Changed("compression") {
		o.compression = cfg.Compression
	}
	if !flags.Changed("storage-dir") {
		o.fileDir = cfg.File.Dir
	}
	if !flags.Changed("sqlite-path") {
		o.sqlitePath = cfg.SQLite.Path
	}
	if !flags.Changed("redis-host") {
		o.redisHost = cfg.Redis.Host
	}
	if !flags.Changed("redis-port") {
		o.redisPort = cfg.Redis.Port
	}
	if !flags.Changed("redis-password") {
		o.redisPassword = cfg.Redis.Password
	}
	if !flags.Changed("redis-db") {
		o.redisDB = cfg.Redis.DB
	}
	if !flags.Changed("redis-cluster") {
		o.redisCluster = cfg.Redis.Cluster
	}
	if !flags.Changed("redis-cluster-nodes") {
		o.redisClusterNodes = cfg.Redis.ClusterNodes
	}
	if !flags.Changed("redis-pool-size") {
		o.redisPoolSize = cfg.Redis.PoolSize
	}
	if !flags.Changed("redis-max-retries") {
		o.redisMaxRetries = cfg.Redis.MaxRetries
	}
	if !flags.Changed("redis-dial-timeout") {
		o.redisDialTimeout = cfg.Redis.DialTimeout
	}
}

func (o *storageOptions) normalize() error {
	if o.redisCluster || !strings.EqualFold(o.backend, storage.BackendRedis) {
		return nil
	}

	host, port, err := normalizeRedisHostPort(o.redisHost, o.redisPort)
	if err != nil {
		return err
	}
	o.redisHost = host
	o.redisPort = port
	return nil
}

func (o *storageOptions) toConfig() storage.Config {
	return storage.Config{
		Backend:     o.backend,
		Compression: o.compression,
		File: storage.FileConfig{
			Dir: o.fileDir,
		},
		SQLite: storage.SQLiteConfig{
			Path: o.sqlitePath,
		},
		Redis: storage.RedisConfig{
			Host:         o.redisHost,
			Port:         o.redisPort,
			Password:     o.redisPassword,
			DB:           o.redisDB,
			Cluster:      o.redisCluster,
			ClusterNodes: append([]string(nil), o.redisClusterNodes...),
			PoolSize:     o.redisPoolSize,
			MaxRetries:   o.redisMaxRetries,
			DialTimeout:  o.redisDialTimeout,
		},
	}
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}
