package store

import (
	"context"
	"time"
)

// AtomicStore is the shared store behind rate limits and cooldown markers.
// Every method must be atomic at the store level because several router
// instances may share one store.
type AtomicStore interface {
	// SlidingWindowAdmit purges entries older than window under key and
	// records a new one if fewer than limit remain. It reports whether the
	// new entry was recorded.
	SlidingWindowAdmit(ctx context.Context, key string, window time.Duration, limit int) (bool, error)

	// WindowCount purges expired entries and returns how many remain.
	WindowCount(ctx context.Context, key string, window time.Duration) (int64, error)

	// SetIfAbsentWithTTL creates a marker under key that expires after ttl.
	// When a marker already exists it is left untouched and its remaining
	// lifetime is returned.
	SetIfAbsentWithTTL(ctx context.Context, key string, ttl time.Duration) (wasAbsent bool, remaining time.Duration, err error)

	Delete(ctx context.Context, key string) error
}
