package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

type storeFactory struct {
	name string
	new  func(t *testing.T) (Store, func())
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			new: func(t *testing.T) (Store, func()) {
				s := NewMemoryStore()
				return s, func() { _ = s.Close() }
			},
		},
		{
			name: "file",
			new: func(t *testing.T) (Store, func()) {
				s := NewFileStore(FileConfig{Dir: t.TempDir()})
				return s, func() { _ = s.Close() }
			},
		},
		{
			name: "sqlite",
			new: func(t *testing.T) (Store, func()) {
				s, err := NewSQLiteStore(context.Background(), SQLiteConfig{Path: filepath.Join(t.TempDir(), "logs.db")})
				require.NoError(t, err)
				return s, func() { _ = s.Close() }
			},
		},
		{
			name: "zstd+memory",
			new: func(t *testing.T) (Store, func()) {
				s, err := NewCompressedStore(NewMemoryStore())
				require.NoError(t, err)
				return s, func() { _ = s.Close() }
			},
		},
		{
			name: "redis",
			new: func(t *testing.T) (Store, func()) {
				return newRedisStoreForTest(t)
			},
		},
	}
}

func TestStoreContract(t *testing.T) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			store, cleanup := f.new(t)
			defer cleanup()

			contractReadMissing(t, store)
			contractWriteRead(t, store)
			contractReplace(t, store)
			contractIsolation(t, store)
			contractCheck(t, store)
		})
	}
}

func contractReadMissing(t *testing.T, s Store) {
	t.Helper()
	_, err := s.Read(context.Background(), "missing.json")
	require.Error(t, err)
	assert.True(t, fault.IsStorageUnavailable(err), "want STORAGE_UNAVAILABLE, got %v", err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func contractWriteRead(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	want := []byte(`[{"recorded_at":0,"controls":{"x":0}}]`)
	require.NoError(t, s.Write(ctx, "inputs.json", want))

	got, err := s.Read(ctx, "inputs.json")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func contractReplace(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "replace.json", []byte("[1]")))
	require.NoError(t, s.Write(ctx, "replace.json", []byte("[]")))

	got, err := s.Read(ctx, "replace.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func contractIsolation(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "a.json", []byte("a")))
	require.NoError(t, s.Write(ctx, "b.json", []byte("b")))

	a, err := s.Read(ctx, "a.json")
	require.NoError(t, err)
	b, err := s.Read(ctx, "b.json")
	require.NoError(t, err)
	assert.Equal(t, "a", string(a))
	assert.Equal(t, "b", string(b))
}

func contractCheck(t *testing.T, s Store) {
	t.Helper()
	assert.NoError(t, s.Check(context.Background(), "check.json"))
}

func TestMemoryStore_ReadReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "k", []byte("abc")))

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Len())
}

func TestFileStore_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(FileConfig{Dir: dir})
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "runs/auto.json", []byte("[]")))
	require.NoError(t, s.Write(ctx, "runs/auto.json", []byte(`[{"recorded_at":0,"controls":{}}]`)))

	entries, err := os.ReadDir(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "auto.json", entries[0].Name())
}

func TestFileStore_AbsoluteLocationIgnoresDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "abs.json")
	s := NewFileStore(FileConfig{Dir: "/nonexistent-base"})
	assert.Equal(t, abs, s.Path(abs))
	assert.Equal(t, filepath.Join("/nonexistent-base", "rel.json"), s.Path("rel.json"))
}

func TestFileStore_CheckRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "taken"), 0o755))

	err := NewFileStore(FileConfig{Dir: dir}).Check(context.Background(), "taken")
	assert.True(t, fault.IsStorageUnavailable(err))
}

func TestFileStore_CheckUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.Mkdir(locked, 0o555))

	s := NewFileStore(FileConfig{Dir: locked})
	err := s.Check(context.Background(), "inputs.json")
	assert.True(t, fault.IsStorageUnavailable(err))

	err = s.Write(context.Background(), "inputs.json", []byte("[]"))
	assert.True(t, fault.IsStorageUnavailable(err))
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "logs.db")

	s, err := NewSQLiteStore(ctx, SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "b.json", []byte("[]")))
	require.NoError(t, s.Write(ctx, "a.json", []byte("[]")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close must be idempotent")

	s, err = NewSQLiteStore(ctx, SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer s.Close()

	locs, err := s.Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, locs)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), SQLiteConfig{})
	assert.Error(t, err)
}

func TestCompressedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s, err := NewCompressedStore(inner)
	require.NoError(t, err)
	defer s.Close()

	plain := []byte(`[{"recorded_at":0,"controls":{"left_stick_x":0.5}}]`)
	require.NoError(t, s.Write(ctx, "log.json", plain))

	raw, err := inner.Read(ctx, "log.json")
	require.NoError(t, err)
	assert.True(t, IsCompressed(raw))

	got, err := s.Read(ctx, "log.json")
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	// Logs written without compression stay readable.
	require.NoError(t, inner.Write(ctx, "old.json", []byte("[]")))
	got, err = s.Read(ctx, "old.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	// A corrupt frame is a malformed log, not a storage outage.
	require.NoError(t, inner.Write(ctx, "bad.json", append(append([]byte{}, zstdMagic...), 0xff, 0xff)))
	_, err = s.Read(ctx, "bad.json")
	assert.True(t, fault.IsMalformedLog(err), "want MALFORMED_LOG, got %v", err)
	assert.False(t, fault.IsStorageUnavailable(err))
}

func TestCompressedStore_DecodedSizeLimit(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s, err := newCompressedStore(inner, 1<<10)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(ctx, "small.json", []byte("[]")))
	got, err := s.Read(ctx, "small.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	require.NoError(t, s.Write(ctx, "big.json", bytes.Repeat([]byte{'0'}, 64<<10)))
	raw, err := inner.Read(ctx, "big.json")
	require.NoError(t, err)
	assert.Less(t, len(raw), 1<<10, "zeros should compress well below the limit")

	_, err = s.Read(ctx, "big.json")
	assert.True(t, fault.IsMalformedLog(err), "want MALFORMED_LOG, got %v", err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.File.Dir = t.TempDir()
	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	cfg.Backend = BackendMemory
	cfg.Compression = CompressionZstd
	s, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &CompressedStore{}, s)
	require.NoError(t, s.Close())

	cfg.Backend = BackendSQLite
	cfg.Compression = CompressionNone
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "x.db")
	s, err = Open(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "tape"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: BackendMemory, Compression: "lz4"})
	assert.Error(t, err)
}

func TestNormalizeRedisConfig(t *testing.T) {
	_, err := normalizeRedisConfig(nil)
	assert.Error(t, err)

	_, err = normalizeRedisConfig(&RedisConfig{Cluster: true})
	assert.Error(t, err)

	_, err = normalizeRedisConfig(&RedisConfig{Host: "localhost"})
	assert.Error(t, err)

	conf, err := normalizeRedisConfig(&RedisConfig{Host: "localhost", Port: 6379})
	require.NoError(t, err)
	assert.Equal(t, defaultRedisPoolSize, conf.PoolSize)
	assert.Equal(t, defaultRedisMaxRetries, conf.MaxRetries)
	assert.Equal(t, defaultRedisDialTimeout, conf.DialTimeout)
}
