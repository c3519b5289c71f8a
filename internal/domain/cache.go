package domain

import (
	"context"
	"time"
)

// MarketCache caches the most recent admissible-market snapshot so a round
// does not refetch the feed when sync ran moments earlier.
type MarketCache interface {
	SetAdmissible(ctx context.Context, markets []Market) error
	// GetAdmissible returns ErrNotFound when no snapshot is cached.
	GetAdmissible(ctx context.Context) ([]Market, error)
	Invalidate(ctx context.Context) error
}

// RateLimiter limits request rates per key over a sliding window.
type RateLimiter interface {
	// Allow reports whether one more request for key fits under limit
	// within window, counting the request when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request for key is allowed or ctx expires.
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed mutual exclusion. Round execution and
// settlement each run under a lock so overlapping scheduler triggers cannot
// double-run them.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when the
	// lock is taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
