package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching and short-lived coordination.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetStatus retrieves a cached claim status view.
	GetStatus(ctx context.Context, claimID string) (*StatusView, error)

	// SetStatus caches a claim status view.
	SetStatus(ctx context.Context, claimID string, view *StatusView, ttl time.Duration) error

	// AcquireLock takes key for ttl if nobody holds it. The returned token
	// must be passed to ReleaseLock. ok is false when the lock is held.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// ReleaseLock frees key only if it is still held with token.
	ReleaseLock(ctx context.Context, key, token string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `split_words:"true"`
	LocalTTL     time.Duration `split_words:"true"`

	// Redis settings (Pro tier)
	RedisAddr     string `split_words:"true"`
	RedisPassword string `split_words:"true"`
	RedisDB       int    `envconfig:"REDIS_DB"`

	// Two-phase settings
	EnableTwoPhase bool `split_words:"true"` // If true, check local first, then Redis

	// StatusTTL bounds how long a status view is served from cache.
	StatusTTL time.Duration `split_words:"true"`
}
