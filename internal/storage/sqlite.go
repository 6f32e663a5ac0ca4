package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/SmitUplenchwar2687/Retrace/internal/fault"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - logs table
const currentSchemaVersion = 1

// SQLiteStore keeps logs as rows of a single table, one row per location.
type SQLiteStore struct {
	db *sql.DB

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteStore creates or opens the database at cfg.Path and applies
// pragmas and the schema. Safe to call on an existing database.
func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fault.Storage("storage.open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fault.Storage("storage.open", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fault.Storage("storage.open", err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fault.Storage("storage.open", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Read(ctx context.Context, location string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM logs WHERE location = ?`, location).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.Storage("storage.read", fmt.Errorf("%s: %w", location, ErrNotFound))
	}
	if err != nil {
		return nil, fault.Storage("storage.read", err)
	}
	return data, nil
}

// Write upserts the row in a single statement.
func (s *SQLiteStore) Write(ctx context.Context, location string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (location, data, size, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			updated_at = excluded.updated_at`,
		location, data, len(data), time.Now().UnixMilli())
	if err != nil {
		return fault.Storage("storage.write", err)
	}
	return nil
}

// Check verifies the database is reachable and not read-only.
func (s *SQLiteStore) Check(ctx context.Context, _ string) error {
	var readOnly int
	if err := s.db.QueryRowContext(ctx, `PRAGMA query_only`).Scan(&readOnly); err != nil {
		return fault.Storage("storage.check", err)
	}
	if readOnly != 0 {
		return fault.Storage("storage.check", errors.New("database is read-only"))
	}
	return nil
}

// Locations lists stored locations in order.
func (s *SQLiteStore) Locations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT location FROM logs ORDER BY location`)
	if err != nil {
		return nil, fault.Storage("storage.list", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fault.Storage("storage.list", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Storage("storage.list", err)
	}
	return out, nil
}

// Close closes the database connection. It is idempotent.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
