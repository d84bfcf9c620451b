package authclient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure the library can surface.
type ErrorKind string

// Error kinds as constants
const (
	// KindInvalidArgument indicates malformed caller input; no I/O was
	// attempted.
	KindInvalidArgument ErrorKind = "invalid_argument"

	// KindAmbiguousUser indicates a cache lookup matched multiple users and a
	// user ID is required.
	KindAmbiguousUser ErrorKind = "ambiguous_user"

	// KindServerError indicates the token endpoint returned an OAuth 2.0 error
	// response.
	KindServerError ErrorKind = "server_error"

	// KindUserInputNeeded indicates the silent flow was exhausted without
	// reaching a usable token.
	KindUserInputNeeded ErrorKind = "user_input_needed"

	// KindMultipleInteractiveRequests indicates another interactive request is
	// already in flight.
	KindMultipleInteractiveRequests ErrorKind = "multiple_interactive_requests"

	// KindConnectionFailed indicates a transport-level failure reaching the
	// server.
	KindConnectionFailed ErrorKind = "connection_failed"

	// KindAuthorityValidationFailed indicates the authority was rejected or
	// could not be validated.
	KindAuthorityValidationFailed ErrorKind = "authority_validation_failed"

	// KindBrokerDecryptionFailed indicates a broker response could not be
	// verified or decrypted.
	KindBrokerDecryptionFailed ErrorKind = "broker_decryption_failed"

	// KindCachePersistenceFailed indicates a cache snapshot could not be
	// persisted. Non-fatal: the in-memory cache remains authoritative.
	KindCachePersistenceFailed ErrorKind = "cache_persistence_failed"

	// KindUnexpectedInternal is the defensive catch-all for invariant
	// violations.
	KindUnexpectedInternal ErrorKind = "unexpected_internal"
)

// OAuth 2.0 protocol error codes as constants
const (
	ProtocolCodeInvalidRequest      = "invalid_request"
	ProtocolCodeInvalidGrant        = "invalid_grant"
	ProtocolCodeInvalidClient       = "invalid_client"
	ProtocolCodeUnauthorizedClient  = "unauthorized_client"
	ProtocolCodeInteractionRequired = "interaction_required"
	ProtocolCodeServerError         = "server_error"
	ProtocolCodeAccessDenied        = "access_denied"
)

// AuthError is the error type for every failure surfaced by the library.
type AuthError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// ProtocolCode is the OAuth error code reported by the server, when the
	// failure originated from an error response (e.g. "invalid_grant").
	ProtocolCode string

	// Description is a human-readable description of the failure.
	Description string

	// ErrorCodes are server-specific numeric error codes, when reported.
	ErrorCodes []int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.ProtocolCode != "" {
		fmt.Fprintf(&b, " (%s)", e.ProtocolCode)
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As matching.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates an error of the given kind.
func NewAuthError(kind ErrorKind, description string) *AuthError {
	return &AuthError{Kind: kind, Description: description}
}

// WrapError wraps a cause in an error of the given kind.
func WrapError(kind ErrorKind, description string, err error) *AuthError {
	return &AuthError{Kind: kind, Description: description, Err: err}
}

// NewServerError creates a server error from an OAuth error response.
func NewServerError(protocolCode, description string, errorCodes []int) *AuthError {
	return &AuthError{
		Kind:         KindServerError,
		ProtocolCode: protocolCode,
		Description:  description,
		ErrorCodes:   errorCodes,
	}
}

// IsKind reports whether err is an AuthError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.Kind == kind
}

// refreshTokenRejected reports whether a server error means the refresh token
// is no longer usable and the engine should fall back rather than give up.
func refreshTokenRejected(err *AuthError) bool {
	if err == nil || err.Kind != KindServerError {
		return false
	}
	return err.ProtocolCode == ProtocolCodeInvalidGrant ||
		err.ProtocolCode == ProtocolCodeInteractionRequired
}
