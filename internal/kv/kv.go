// Package kv provides the durable key-value storage used for alarms and
// device settings. Keys are grouped into namespaces such as "alarms" and
// "settings".
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Separator joins a namespace and a key into the stored key.
const Separator = '/'

// Store is a flat byte-valued key-value store.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every stored key with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// JoinKey builds a stored key from a namespace and a key.
func JoinKey(namespace, key string) string {
	return namespace + string(Separator) + key
}
