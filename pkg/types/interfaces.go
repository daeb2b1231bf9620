package types

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by RemoteStore.Get when the key is absent. It is
// distinct from a stored empty value and from transport failures, which the
// caller treats as soft misses.
var ErrNotFound = errors.New("remote store: key not found")

// Fallback computes a value when both cache tiers miss. It is supplied by the
// caller per lookup and may block on arbitrary I/O; the optimizer collapses
// concurrent invocations for the same key onto a single execution.
type Fallback func(ctx context.Context) (interface{}, error)

// RemoteStore is the contract consumed from the shared cache tier. All calls
// cross the network and may fail independently; implementations must return
// ErrNotFound for absent keys so callers can tell absence from unavailability.
type RemoteStore interface {
	// Get returns the stored bytes for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// FlushAll empties the store's namespace.
	FlushAll(ctx context.Context) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resources.
	Close() error
}
