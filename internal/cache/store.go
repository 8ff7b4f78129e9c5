// Package cache provides the shared counter/value store behind rate limiting.
// Redis is used when configured; otherwise the primary database holds the entries.
package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used across the application.
type Store interface {
	// IncrementWithTTL bumps the counter for key inside a fixed window and
	// returns the new count with the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
