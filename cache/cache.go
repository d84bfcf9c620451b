package cache

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by cache operations. Callers match them with
// errors.Is and translate them into the library's error taxonomy.
var (
	// ErrInvalidKey indicates a cache key could not be derived from the
	// supplied authority/resource/client ID.
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrInvalidItem indicates an item with a zero key was offered to the
	// cache.
	ErrInvalidItem = errors.New("invalid cache item")

	// ErrAmbiguousUser indicates a lookup without a user ID matched items
	// belonging to more than one distinct user. The cache never guesses.
	ErrAmbiguousUser = errors.New("cache lookup matched multiple users, user ID required")

	// ErrIncompatibleSnapshot indicates a serialized cache snapshot carries a
	// version this implementation does not understand. Deserialization fails
	// closed and leaves the in-memory state untouched.
	ErrIncompatibleSnapshot = errors.New("unsupported cache snapshot version")
)

// WipeMarker records that a user's credentials were wiped, for cross-app
// cache invalidation signaling. It survives serialization so other consumers
// of the shared snapshot can observe the wipe.
type WipeMarker struct {
	// UserID identifies whose credentials were wiped.
	UserID string `json:"user_id"`

	// WipedAt is when the wipe happened.
	WipedAt time.Time `json:"wiped_at"`
}

// TokenCache stores credential items keyed by (Key, user ID).
//
// Implementations must be safe for concurrent use: multiple readers may
// proceed in parallel, writers are serialized, and at most one item exists
// per (Key, user ID) pair at any time.
type TokenCache interface {
	// Get returns the item for (key, userID), or nil on a miss. With an empty
	// userID it returns the single match for the key, failing with
	// ErrAmbiguousUser if items from two or more distinct users match.
	Get(ctx context.Context, key Key, userID string) (*Item, error)

	// GetAll enumerates items. A nil key matches every key; an empty userID
	// matches every user. Used for MRRT and FRT scans.
	GetAll(ctx context.Context, key *Key, userID string) ([]Item, error)

	// AddOrUpdate stores the item, atomically replacing any existing item
	// with the same (Key, user ID).
	AddOrUpdate(ctx context.Context, item Item) error

	// Remove deletes the item's (Key, user ID) slot. Removing an item that is
	// not present is not an error.
	Remove(ctx context.Context, item Item) error

	// RemoveAllForClient deletes every item cached for the client.
	RemoveAllForClient(ctx context.Context, clientID string) error

	// RemoveAllForUser deletes every item cached for the user under the given
	// client.
	RemoveAllForUser(ctx context.Context, userID, clientID string) error

	// WipeAllForUser deletes every item for the user across all clients and
	// records a wipe marker.
	WipeAllForUser(ctx context.Context, userID string) error

	// GetWipeMarker returns the most recent wipe marker, or nil if no wipe
	// has been recorded.
	GetWipeMarker(ctx context.Context) (*WipeMarker, error)

	// Serialize renders the whole cache as a versioned snapshot.
	Serialize() ([]byte, error)

	// Deserialize replaces the in-memory state with the snapshot. On any
	// error, including ErrIncompatibleSnapshot, the previous state is kept.
	Deserialize(data []byte) error
}
