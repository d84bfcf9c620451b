package authclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/giantswarm/authclient/cache"
	"github.com/giantswarm/authclient/instrumentation"
	"github.com/giantswarm/authclient/security"
	"github.com/giantswarm/authclient/storage"
)

// Default configuration values
const (
	// DefaultRequestTimeout is the per-request timeout for token endpoint
	// calls.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultTokenEndpointRate is the default sustained request rate against
	// the token endpoint, in requests per second.
	DefaultTokenEndpointRate = 10

	// DefaultTokenEndpointBurst is the default burst size against the token
	// endpoint.
	DefaultTokenEndpointBurst = 20
)

// Config holds the token acquisition client configuration
type Config struct {
	// Authority is the issuer/tenant endpoint base URL tokens are requested
	// from, e.g. "https://login.microsoftonline.com/common" (required).
	Authority string

	// ClientID is the application's client identifier (required).
	ClientID string

	// RedirectURI is the redirect URI registered for the client. Required for
	// interactive acquisition.
	RedirectURI string

	// ValidateAuthority enables authority validation against the trusted
	// discovery endpoint before the first token request.
	ValidateAuthority bool

	// TrustedAuthorityHost overrides the discovery host used for authority
	// validation and doubles as the trusted hint for ADFS authorities. Empty
	// means the default trusted host.
	TrustedAuthorityHost string

	// FamilyID marks this client as a member of a refresh token family.
	// Family refresh tokens cached by any client in the family are candidates
	// for the fallback exchange.
	FamilyID string

	// Cache is the token cache. Defaults to a fresh in-memory cache.
	Cache cache.TokenCache

	// Storage is the secure storage collaborator used to persist cache
	// snapshots. Optional; nil disables persistence.
	Storage storage.Store

	// Authorizer presents interactive authorization UI. Required only when
	// interactive acquisition is used.
	Authorizer Authorizer

	// BrokerSessionKey is the symmetric key shared with the sign-in broker.
	// Required only when the authorizer returns brokered responses.
	BrokerSessionKey []byte

	// ExpirationBuffer is subtracted from access token expiry when deciding
	// whether a cached token is still usable. Zero means the default buffer.
	ExpirationBuffer time.Duration

	// RequestTimeout is the per-request timeout for token endpoint calls.
	// Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// RateLimit configures client-side throttling of token endpoint requests.
	RateLimit RateLimitConfig

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for token and discovery requests.
	// If not provided, uses a client with RequestTimeout applied.
	HTTPClient *http.Client

	// Instrumentation enables OpenTelemetry metrics and tracing (optional)
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds client-side token endpoint throttling configuration
type RateLimitConfig struct {
	// Rate is sustained requests per second against the token endpoint.
	// Zero means DefaultTokenEndpointRate; negative disables limiting.
	Rate float64

	// Burst is the maximum burst size. Zero means DefaultTokenEndpointBurst.
	Burst int
}

// validate checks required fields and fills in defaults.
func (c *Config) validate() error {
	if c.Authority == "" {
		return NewAuthError(KindInvalidArgument, "authority is required")
	}
	if c.ClientID == "" {
		return NewAuthError(KindInvalidArgument, "client ID is required")
	}
	if len(c.BrokerSessionKey) > 0 && len(c.BrokerSessionKey) != security.SessionKeySize {
		return NewAuthError(KindInvalidArgument, "broker session key must be 32 bytes")
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Cache == nil {
		c.Cache = cache.NewMemoryCache()
	}
	if c.ExpirationBuffer == 0 {
		c.ExpirationBuffer = security.DefaultExpirationBuffer
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}
	if c.RateLimit.Rate == 0 {
		c.RateLimit.Rate = DefaultTokenEndpointRate
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultTokenEndpointBurst
	}
	return nil
}
