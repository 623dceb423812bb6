package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the primary Store implementation, backed by a single
// SQLite database file.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and initializes the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locks (
		name TEXT PRIMARY KEY,
		expires_at DATETIME NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key Key, dest any) error {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ?`, string(key),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read cache entry %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return fmt.Errorf("unmarshal cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Set(ctx context.Context, key Key, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO cache_entries (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`, string(key), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key = ?`, string(key))
	return err
}

// TryLock acquires a named lock by inserting a row with an expiry.
// A live row blocks the insert; an expired one is taken over.
func (s *SQLiteStore) TryLock(ctx context.Context, name string, ttl time.Duration) error {
	now := time.Now().UTC()
	res, err := s.conn.ExecContext(ctx, `
	INSERT INTO locks (name, expires_at)
	VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET
		expires_at = excluded.expires_at
	WHERE locks.expires_at < ?
	`, name, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

func (s *SQLiteStore) Unlock(ctx context.Context, name string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM locks WHERE name = ?`, name)
	return err
}
