// Package settings provides the key/value settings storage that holds rules
// and preferences.
//
// Values are exchanged as JSON so that ordered types (rule sets) keep their
// document order regardless of the backing store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidKey indicates an empty or malformed settings key.
	ErrInvalidKey = errors.New("invalid settings key")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("settings store closed")
)

// Store reads, writes and watches settings.
type Store interface {
	// Get decodes the value stored under key into dst. dst should be
	// pre-filled with the default; it is left untouched when key is unset.
	Get(ctx context.Context, key string, dst any) error

	// Set stores value (JSON-encodable) under key and notifies watchers.
	Set(ctx context.Context, key string, value any) error

	// Watch streams changes to key until ctx is cancelled. The channel is
	// closed when watching stops.
	Watch(ctx context.Context, key string) (<-chan Change, error)
}

// Change describes an update to a settings key. Old and New are the raw
// JSON values; nil means unset.
type Change struct {
	Key string
	Old json.RawMessage
	New json.RawMessage
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
