package security

import "time"

const (
	// DefaultExpirationBuffer is subtracted from an access token's expiry when
	// deciding whether a cached token is still usable. A token within the
	// buffer of its real expiry is refreshed proactively so it does not expire
	// mid-request.
	//
	// Five minutes matches the behavior callers of directory authorities
	// expect: token lifetimes are typically an hour, and the buffer trades a
	// slightly earlier refresh for never handing out a token that dies in
	// flight.
	DefaultExpirationBuffer = 5 * time.Minute

	// DefaultClockSkewGracePeriod is the grace period applied to server-issued
	// timestamps to absorb NTP drift between the client and the authority.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsAccessTokenExpired reports whether an access token that expires at
// expiresOn should be considered expired given the refresh buffer.
// A zero expiresOn means the lifetime is unknown; the token is treated as not
// expired so it is still attempted once.
func IsAccessTokenExpired(expiresOn time.Time, buffer time.Duration) bool {
	if expiresOn.IsZero() {
		return false
	}
	return !time.Now().Before(expiresOn.Add(-buffer))
}

// IsTimestampExpired reports whether a server-issued timestamp has passed,
// allowing the default clock skew grace period. Used for refresh token and
// snapshot expiry checks where no proactive buffer is wanted.
func IsTimestampExpired(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(DefaultClockSkewGracePeriod))
}

// ExpiryFromLifetime converts an expires_in lifetime reported by the token
// endpoint into an absolute expires-on timestamp. Non-positive lifetimes
// yield a zero time (unknown lifetime).
func ExpiryFromLifetime(now time.Time, expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(expiresIn) * time.Second)
}
