package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys
//
// SECURITY WARNING: Never record actual sensitive values (access tokens,
// refresh tokens, session keys, decrypted broker payloads) in traces or
// metrics. Only record metadata such as grant types, expiry times, family IDs,
// and validation results.
const (
	// Acquisition flow attributes - SAFE to use for metadata only
	AttrClientID      = "auth.client_id"       // Client identifier (non-secret)
	AttrUserID        = "auth.user_id"         // User identifier (non-secret)
	AttrResource      = "auth.resource"        // Requested resource identifier
	AttrAuthority     = "auth.authority"       // Normalized authority URL
	AttrGrantType     = "auth.grant_type"      // OAuth grant type used
	AttrFamilyID      = "auth.token.family_id" //nolint:gosec // Refresh token family identifier
	AttrCorrelationID = "auth.correlation_id"  // Request correlation identifier
	AttrTokenType     = "auth.token_type"      //nolint:gosec // Token type (Bearer, etc.) - NOT the actual token
	AttrExpiresIn     = "auth.expires_in"      // Token expiry duration
	AttrError         = "auth.error"           // Protocol error code
	AttrCacheResult   = "auth.cache.result"    // Cache lookup result

	// Broker attributes
	AttrBrokerProtocolVersion = "auth.broker.protocol_version"
	AttrBrokerHashValid       = "auth.broker.hash_valid"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddAcquisitionAttributes adds common acquisition flow attributes to a span (nil-safe)
func AddAcquisitionAttributes(span trace.Span, clientID, resource, userID string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if resource != "" {
		SetSpanAttributes(span, attribute.String(AttrResource, resource))
	}
	if userID != "" {
		SetSpanAttributes(span, attribute.String(AttrUserID, userID))
	}
}

// AddFamilyAttributes adds refresh token family attributes to a span (nil-safe)
func AddFamilyAttributes(span trace.Span, familyID string) {
	if familyID != "" {
		SetSpanAttributes(span, attribute.String(AttrFamilyID, familyID))
	}
}
