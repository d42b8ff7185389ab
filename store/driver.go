package store

import "context"

// Driver provides key-value persistence for serialized collections.
//
// The storage model is deliberately coarse: the whole chat history is one
// value under one key, re-written on every mutation. Two concurrent writers
// clobber each other, last-writer-wins with no merge. That is acceptable for
// a single client instance.
type Driver interface {
	// Get returns the value under key. The second result reports whether the
	// key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Migrate creates the backing schema if it does not exist yet.
	Migrate(ctx context.Context) error
	Close() error
}
