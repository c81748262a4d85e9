package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// Customer records are never cached; lookups always read the store.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetLookup retrieves a cached lookup activity entry.
	GetLookup(ctx context.Context, lookupID string) (*LookupActivity, error)

	// SetLookup caches a completed lookup.
	SetLookup(ctx context.Context, activity *LookupActivity, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// The window starts with the first increment.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Counter reads a counter without changing it. Missing counters read as 0.
	Counter(ctx context.Context, key string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `mapstructure:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `mapstructure:"localMaxSize"`
	LocalTTL     time.Duration `mapstructure:"localTtl"`

	// Redis settings (Pro tier)
	RedisAddr     string `mapstructure:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `mapstructure:"enableTwoPhase"` // If true, check local first, then Redis

	// LookupTTL is how long completed lookups stay retrievable from cache.
	LookupTTL time.Duration `mapstructure:"lookupTtl"`
}
