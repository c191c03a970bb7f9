package storage

import "context"

// KV is a string-keyed blob store. Values are opaque to the store; callers
// typically keep a JSON document per key.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Update atomically replaces the value under key with fn(old). old is nil
	// when the key is absent. If fn returns an error nothing is written.
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
}
