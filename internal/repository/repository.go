package repository

import "context"

// KeyValueStore is the persistent medium behind the credential store. Keys
// are opaque strings; values are stored verbatim.
type KeyValueStore interface {
	// Get returns the value stored under key. A missing key yields an
	// error wrapping apperrors.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// SetMulti stores all values atomically: either every key is written or none is.
	SetMulti(ctx context.Context, values map[string]string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists every key that starts with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Ping reports whether the medium is reachable.
	Ping(ctx context.Context) error
}
