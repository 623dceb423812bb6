// Package cache provides the KV store that holds pre-computed dashboard
// artifacts between refresh runs. Each key is an independently readable
// JSON blob; writes across keys are sequential, not transactional.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cohortdash/internal/config"
)

// Key identifies one logical cache entry.
type Key string

const (
	KeyCohortEvents   Key = "COHORT_EVENTS"
	KeyMyWeekData     Key = "MY_WEEK_DATA"
	KeyNewsletterData Key = "NEWSLETTER_DATA"
	KeyDashboardData  Key = "DASHBOARD_DATA"
)

var (
	// ErrNotFound is returned when a key has never been written.
	ErrNotFound = errors.New("cache: key not found")
	// ErrLockHeld is returned by TryLock when another run holds the lock.
	ErrLockHeld = errors.New("cache: lock held")
)

// Store is the KV abstraction the refresh pipelines and read APIs use.
type Store interface {
	// Get unmarshals the value stored under key into dest.
	Get(ctx context.Context, key Key, dest any) error
	// Set marshals value as JSON and stores it under key.
	Set(ctx context.Context, key Key, value any) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// TryLock acquires a named short-lived lock, or returns ErrLockHeld.
	// The lock expires after ttl even if never released.
	TryLock(ctx context.Context, name string, ttl time.Duration) error
	// Unlock releases a named lock.
	Unlock(ctx context.Context, name string) error

	Close() error
}

// Open creates the Store selected by the config.
func Open(cfg config.CacheConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "file":
		return OpenFileStore(cfg.Path)
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}
