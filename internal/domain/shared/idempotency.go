package shared

import (
	"context"
	"time"
)

// IdempotencyStore records processed keys (e.g. Stripe event IDs) to reject replays
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes a key so the event can be retried
	Forget(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
