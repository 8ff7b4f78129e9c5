package models

import (
	"time"
)

// CacheEntry represents a cached value stored in the database fallback used
// for rate limiting when Redis is not configured.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
