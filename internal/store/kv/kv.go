// Package kv provides the durable key-value surface the chat core
// persists through. Three drivers are available: an in-memory map,
// an embedded sqlite database, and redis.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kv: key not found")

	ErrInvalidDriver = errors.New("kv: unknown driver")
	ErrInvalidConfig = errors.New("kv: invalid driver config")
)

// Store is a minimal string key-value persistence surface.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}
