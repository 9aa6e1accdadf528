package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes the key so a later retry is processed (rollback on failure)
	ReleaseIdempotency(ctx context.Context, key string) error
}

// RateLimiter counts hits for a client key in fixed windows.
type RateLimiter interface {
	// Allow records one hit and reports whether the key is still within its limit,
	// along with the time until the current window resets
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}
