// Package prefs persists small user preferences across runs.
//
// The companion keeps one entry today, the custom instructions text, under
// KeyCustomPrompt. The store is a plain key/value interface so the JSON file
// and SQLite backends are interchangeable.
package prefs

import (
	"context"
	"errors"
	"fmt"
)

// KeyCustomPrompt is the key holding the custom instructions override.
const KeyCustomPrompt = "customPrompt"

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("prefs: store is closed")

// Store defines the interface for preference persistence backends.
type Store interface {
	// Get returns the value for key. ok is false when the key was never set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("prefs: unsupported backend %q", backend)
	}
}

// CustomPrompt reads the custom instructions text. A missing entry is "".
func CustomPrompt(ctx context.Context, s Store) (string, error) {
	v, _, err := s.Get(ctx, KeyCustomPrompt)
	return v, err
}

// SetCustomPrompt writes the custom instructions text.
func SetCustomPrompt(ctx context.Context, s Store, text string) error {
	return s.Set(ctx, KeyCustomPrompt, text)
}
