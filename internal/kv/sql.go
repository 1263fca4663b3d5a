// Stores keys in a SQL table through database/sql.

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// SQL is a Storage over a two-column table `kv(key, value)`.
type SQL struct {
	db      *sql.DB
	timeout time.Duration
	get     string
	set     string
	remove  string
}

const createKVTable = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// NewSQLite opens or creates the SQLite database at path.
func NewSQLite(path string, timeout time.Duration) (*SQL, error) {
	if path == "" {
		return nil, errors.New("sqlite storage requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers; SQLite would otherwise
	// return SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)
	s := &SQL{
		db:      db,
		timeout: timeout,
		get:     `SELECT value FROM kv WHERE key = ?`,
		set:     `INSERT INTO kv(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		remove:  `DELETE FROM kv WHERE key = ?`,
	}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres connects to the PostgreSQL database at dsn.
func NewPostgres(ctx context.Context, dsn string, timeout time.Duration) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("postgres storage requires a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &SQL{
		db:      db,
		timeout: timeout,
		get:     `SELECT value FROM kv WHERE key = $1`,
		set:     `INSERT INTO kv(key, value) VALUES($1, $2) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		remove:  `DELETE FROM kv WHERE key = $1`,
	}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, createKVTable); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// Get implements Storage.
func (s *SQL) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var value string
	if err := s.db.QueryRowContext(ctx, s.get, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

// Set implements Storage.
func (s *SQL) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.set, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Remove implements Storage.
func (s *SQL) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, s.remove, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close implements Storage.
func (s *SQL) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for tests.
func (s *SQL) DB() *sql.DB { return s.db }
