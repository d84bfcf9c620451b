package cache

import (
	"fmt"
	"strings"

	"github.com/giantswarm/authclient/authority"
)

// Key identifies a cache slot: (authority, resource, client ID).
// Keys are immutable value types; construct them with NewKey. Two keys are
// equal iff all three fields match, with the authority compared after
// normalization and the resource and client ID compared byte-for-byte.
type Key struct {
	authority string
	resource  string
	clientID  string
}

// NewKey derives a cache key. The authority is normalized (lowercased, single
// trailing slash); an empty or malformed authority or an empty client ID is
// rejected. An empty resource denotes an MRRT/FRT key.
func NewKey(rawAuthority, resource, clientID string) (Key, error) {
	normalized, err := authority.Normalize(rawAuthority)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if strings.TrimSpace(clientID) == "" {
		return Key{}, fmt.Errorf("%w: client ID cannot be empty", ErrInvalidKey)
	}
	return Key{
		authority: normalized,
		resource:  resource,
		clientID:  clientID,
	}, nil
}

// Authority returns the normalized authority URL.
func (k Key) Authority() string { return k.authority }

// Resource returns the resource identifier; empty for MRRT/FRT keys.
func (k Key) Resource() string { return k.resource }

// ClientID returns the client identifier.
func (k Key) ClientID() string { return k.clientID }

// HasResource reports whether the key is bound to a specific resource.
func (k Key) HasResource() bool { return k.resource != "" }

// IsZero reports whether the key is the unusable zero value.
func (k Key) IsZero() bool { return k.authority == "" }

// MRRT returns a copy of the key with the resource cleared, used to probe for
// a multi-resource refresh token sharing the same authority and client.
func (k Key) MRRT() Key {
	k.resource = ""
	return k
}

// String renders the key for logging. Cache keys carry no secrets.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.authority, k.resource, k.clientID)
}
