package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// Get returns the payload cached under key and whether a live entry
	// was present. A miss is not an error; the caller recomputes.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores payload under key with a time-based expiry.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}
