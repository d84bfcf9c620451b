package cache

import (
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/authclient/internal/util"
	"github.com/giantswarm/authclient/security"
)

// UserInfo describes the user a cached credential belongs to.
type UserInfo struct {
	// UserID is the unique identifier for the subject, typically a UPN or
	// email. Two UserInfo values represent the same user iff their UserIDs
	// match after trimming and lowercasing.
	UserID string

	// Displayable indicates whether UserID is suitable for display, i.e. it
	// came from a displayable claim rather than a synthesized identifier.
	Displayable bool

	// UniqueID is the immutable object/subject identifier, when known.
	UniqueID string

	// RawIDToken is the raw id_token JWT the user info was parsed from.
	RawIDToken string

	// Claims holds additional string claims extracted from the id_token.
	Claims map[string]string
}

// SameUser reports whether two UserInfo values represent the same user.
func (u UserInfo) SameUser(other UserInfo) bool {
	return util.NormalizeUserID(u.UserID) == util.NormalizeUserID(other.UserID)
}

// Item is a single cached credential record. Items are value types: the cache
// stores and returns copies, and mutation is always read, derive a new value,
// write back.
type Item struct {
	// Key locates the item in the cache, together with the user ID.
	Key Key

	// AccessToken is the access token, if one is cached.
	AccessToken string

	// AccessTokenType is the token type reported by the server, e.g. "Bearer".
	AccessTokenType string

	// RefreshToken is the refresh token, if one is cached.
	RefreshToken string

	// SessionKey is the broker session key bound to this credential, when the
	// tokens were obtained through a broker.
	SessionKey []byte

	// ExpiresOn is the access token expiry. Zero means the server did not
	// report a lifetime; the token is then treated as not expired so it is
	// still attempted once.
	ExpiresOn time.Time

	// FamilyID marks the refresh token as a family refresh token usable by
	// every client in the designated family.
	FamilyID string

	// User identifies the owner of the credential.
	User UserInfo
}

// IsExpired reports whether the access token should be considered expired,
// applying the refresh buffer.
func (i Item) IsExpired(buffer time.Duration) bool {
	return security.IsAccessTokenExpired(i.ExpiresOn, buffer)
}

// IsMRRT reports whether the item is a multi-resource refresh token: a
// refresh token cached without an access token under a resourceless key.
func (i Item) IsMRRT() bool {
	return i.AccessToken == "" && i.RefreshToken != "" && !i.Key.HasResource()
}

// IsFamilyRefreshToken reports whether the item carries a family refresh
// token.
func (i Item) IsFamilyRefreshToken() bool {
	return i.FamilyID != ""
}

// Token converts the item to a standard oauth2.Token for interoperability
// with golang.org/x/oauth2 consumers.
func (i Item) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  i.AccessToken,
		TokenType:    i.AccessTokenType,
		RefreshToken: i.RefreshToken,
		Expiry:       i.ExpiresOn,
	}
}

// clone returns a deep copy of the item so cached state can never be mutated
// through a returned value.
func (i Item) clone() Item {
	out := i
	if i.SessionKey != nil {
		out.SessionKey = append([]byte(nil), i.SessionKey...)
	}
	if i.User.Claims != nil {
		claims := make(map[string]string, len(i.User.Claims))
		for k, v := range i.User.Claims {
			claims[k] = v
		}
		out.User.Claims = claims
	}
	return out
}
