// Package lease provides short-lived exclusive locks keyed by asset tag.
// The coordinator takes a lease for the duration of one custody operation
// so two requests for the same asset serialize; requests for different
// assets never contend.
package lease

import (
	"context"
	"time"
)

// Keyed grants exclusive, expiring leases per key. Acquire returns
// sentinel.ErrLeaseHeld when another holder owns the key; Release is a
// no-op when the token no longer matches (the lease expired and someone
// else took it).
type Keyed interface {
	// Acquire takes the lease and returns an opaque holder token.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)

	// Release frees the lease if token still holds it.
	Release(ctx context.Context, key, token string) error
}
