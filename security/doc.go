// Package security provides security-related helpers for the token acquisition
// library: access token expiration checks with a configurable refresh buffer,
// clock skew handling, and broker session key generation and encoding.
//
// # Expiration Buffer
//
// Access tokens are treated as expired slightly before their real expiry so a
// request made with a cached token does not arrive at the resource with a
// token that dies in flight. The buffer is subtracted from the token's
// expires-on timestamp:
//
//	if security.IsAccessTokenExpired(item.ExpiresOn, security.DefaultExpirationBuffer) {
//	    // fall through to refresh token exchange
//	}
//
// A zero expires-on timestamp means the server did not communicate a lifetime;
// such tokens are treated as NOT expired so they are still attempted once
// rather than silently discarded.
package security
