// Package blobcache provides the durable key→object store backing build
// records. Two backends exist: a filesystem layout and a SQLite database.
package blobcache

import "context"

// Cache is a durable key→blob store. Mutations are durable before they
// return. Keys use "/"-separated segments (e.g. "queued/12").
type Cache interface {
	// Put stores data under key, overwriting any existing value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the value stored under key.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the value stored under key.
	// Returns ErrNotFound if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// List returns all keys beginning with the given prefix, in
	// unspecified order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the cache.
	Close() error
}

// ErrNotFound is returned when a key doesn't exist.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	return "blob not found: " + e.Key
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
