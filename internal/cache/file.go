package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is the static-file fallback Store: one JSON file per key
// under a directory. It exists for environments without a database and
// as the last-resort artifact location.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// OpenFileStore creates the directory if needed.
func OpenFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache: file store dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) pathFor(key Key) string {
	return filepath.Join(s.dir, string(key)+".json")
}

func (s *FileStore) Get(_ context.Context, key Key, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read cache entry %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal cache entry %s: %w", key, err)
	}
	return nil
}

// Set writes atomically via a temp file + rename so readers never see a
// torn value.
func (s *FileStore) Set(_ context.Context, key Key, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.pathFor(key))
}

func (s *FileStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

type lockFile struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *FileStore) lockPath(name string) string {
	return filepath.Join(s.dir, name+".lock")
}

func (s *FileStore) TryLock(_ context.Context, name string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.lockPath(name)
	now := time.Now().UTC()

	if data, err := os.ReadFile(path); err == nil {
		var lf lockFile
		if json.Unmarshal(data, &lf) == nil && lf.ExpiresAt.After(now) {
			return ErrLockHeld
		}
		// Expired or unreadable lock; take it over.
	}

	data, err := json.Marshal(lockFile{ExpiresAt: now.Add(ttl)})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (s *FileStore) Unlock(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.lockPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
