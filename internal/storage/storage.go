// Package storage provides the key/value medium the account store persists
// into. It mirrors the browser's localStorage contract: string keys, string
// values, absent keys reported as not found rather than as errors.
package storage

import (
	"context"
	"errors"
	"strings"
)

var ErrKeyRequired = errors.New("storage key is required")

// Storage is a flat string key/value medium. Implementations must make each
// SetItem a whole-value replacement; there is no partial update.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Pinger is implemented by backends that talk to an external server.
type Pinger interface {
	Ping(ctx context.Context) error
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrKeyRequired
	}
	return key, nil
}
