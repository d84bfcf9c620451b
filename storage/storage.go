// Package storage defines the secure persistent storage collaborator for the
// token cache and provides in-memory and encrypted file-backed
// implementations.
//
// The cache treats storage as an opaque named blob: it serializes itself and
// hands the bytes over. OS keychain wrappers implement the same interface
// outside this module; only the logical contract is reproduced here.
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the backing store cannot be used in this
// environment (e.g. the keychain is locked). Persistence failures are
// recovered locally by the cache; the in-memory state remains authoritative.
var ErrUnavailable = errors.New("secure storage unavailable")

// Store persists an opaque binary blob.
//
// Implementations must be safe for concurrent use. Save replaces the blob
// atomically: a reader never observes a partially written snapshot.
type Store interface {
	// Load returns the stored blob, or (nil, nil) when nothing has been
	// stored yet.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored blob.
	Save(ctx context.Context, data []byte) error

	// Delete removes the stored blob. Deleting an absent blob is not an
	// error.
	Delete(ctx context.Context) error
}
