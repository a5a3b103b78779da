// ABOUTME: KV interface for the synchronous key-value store behind the cache.
// ABOUTME: Defines the contract shared by the SQLite, Badger and memory backends.
package storage

import "errors"

var (
	// ErrQuotaExceeded is returned by SetItem when the store is out of space.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("storage closed")
)

// KV is a synchronous string key-value store.
// This interface allows swapping implementations (e.g., for testing).
type KV interface {
	// GetItem returns the value and true, or "" and false when the key is absent.
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error

	// Keys enumerates every stored key. Used when hydrating a cache.
	Keys() ([]string, error)

	// Lifecycle
	Close() error
}
