package authclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/authclient/cache"
	"github.com/giantswarm/authclient/security"
)

// tokenResponse represents a token endpoint response (wire format)
type tokenResponse struct {
	// AccessToken is the issued access token
	AccessToken string `json:"access_token"`

	// TokenType is the access token type, e.g. "Bearer"
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. The server may send
	// it as a number or a string, hence json.Number.
	ExpiresIn json.Number `json:"expires_in,omitempty"`

	// RefreshToken is the rotated refresh token, when the server issued one
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the raw id_token JWT describing the user, when issued
	IDToken string `json:"id_token,omitempty"`

	// Resource is the resource the tokens were actually issued for. The server
	// may widen or narrow the requested resource; its answer wins.
	Resource string `json:"resource,omitempty"`

	// FamilyID marks the refresh token as a family refresh token
	FamilyID string `json:"foci,omitempty"`

	// Error fields, set on an OAuth error response
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCodes       []int  `json:"error_codes,omitempty"`
}

// expiresOn converts the relative lifetime to an absolute expiry. Zero when
// the server did not report a lifetime.
func (r *tokenResponse) expiresOn(now time.Time) time.Time {
	seconds, err := r.ExpiresIn.Int64()
	if err != nil || seconds <= 0 {
		return time.Time{}
	}
	return security.ExpiryFromLifetime(now, seconds)
}

// idTokenClaims are the claims extracted from an id_token payload
type idTokenClaims struct {
	UPN               string `json:"upn,omitempty"`
	Email             string `json:"email,omitempty"`
	Subject           string `json:"sub,omitempty"`
	ObjectID          string `json:"oid,omitempty"`
	TenantID          string `json:"tid,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	IdentityProvider  string `json:"idp,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// parseUserInfo extracts user identity from a raw id_token JWT.
//
// The token is parsed without signature verification: it arrived over the
// TLS channel from the token endpoint together with the access token it
// describes, and is used only to label cache entries, never as proof of
// identity.
func parseUserInfo(rawIDToken string) (cache.UserInfo, error) {
	if rawIDToken == "" {
		return cache.UserInfo{}, fmt.Errorf("empty id_token")
	}

	parts := strings.Split(rawIDToken, ".")
	if len(parts) < 2 {
		return cache.UserInfo{}, fmt.Errorf("id_token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return cache.UserInfo{}, fmt.Errorf("failed to decode id_token payload: %w", err)
	}

	var claims idTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return cache.UserInfo{}, fmt.Errorf("failed to parse id_token claims: %w", err)
	}

	info := cache.UserInfo{
		UniqueID:   claims.ObjectID,
		RawIDToken: rawIDToken,
		Claims:     map[string]string{},
	}
	if claims.ObjectID == "" {
		info.UniqueID = claims.Subject
	}

	// Prefer a displayable identifier; fall back to the subject.
	switch {
	case claims.UPN != "":
		info.UserID = claims.UPN
		info.Displayable = true
	case claims.Email != "":
		info.UserID = claims.Email
		info.Displayable = true
	case claims.PreferredUsername != "":
		info.UserID = claims.PreferredUsername
		info.Displayable = true
	case claims.Subject != "":
		info.UserID = claims.Subject
	default:
		return cache.UserInfo{}, fmt.Errorf("id_token carries no user identifier")
	}

	if claims.TenantID != "" {
		info.Claims["tid"] = claims.TenantID
	}
	if claims.GivenName != "" {
		info.Claims["given_name"] = claims.GivenName
	}
	if claims.FamilyName != "" {
		info.Claims["family_name"] = claims.FamilyName
	}
	if claims.IdentityProvider != "" {
		info.Claims["idp"] = claims.IdentityProvider
	}
	return info, nil
}
