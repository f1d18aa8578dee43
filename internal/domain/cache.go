package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Kestrel uses it as
// a read-through cache for account transaction history and for rolling
// per-account counters. Supports local LRU or Redis.
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetHistory retrieves cached transaction history for an account.
	// Returns nil, nil on a miss.
	GetHistory(ctx context.Context, accountNum string) ([]HistoryRecord, error)

	// SetHistory caches transaction history for an account.
	SetHistory(ctx context.Context, accountNum string, history []HistoryRecord, ttl time.Duration) error

	// IncrementCounter atomically increments a rolling counter and
	// returns the new value.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// EnableTwoPhase layers the local LRU in front of Redis.
	EnableTwoPhase bool

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
