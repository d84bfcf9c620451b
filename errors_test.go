package authclient

import (
	"errors"
	"fmt"
	"testing"
)

func TestAuthError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AuthError
		want string
	}{
		{
			name: "kind only",
			err:  NewAuthError(KindUserInputNeeded, ""),
			want: "user_input_needed",
		},
		{
			name: "kind with description",
			err:  NewAuthError(KindInvalidArgument, "resource is required"),
			want: "invalid_argument: resource is required",
		},
		{
			name: "server error with protocol code",
			err:  NewServerError(ProtocolCodeInvalidGrant, "token expired", nil),
			want: "server_error (invalid_grant): token expired",
		},
		{
			name: "wrapped cause",
			err:  WrapError(KindConnectionFailed, "request failed", fmt.Errorf("dial tcp: refused")),
			want: "connection_failed: request failed: dial tcp: refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := WrapError(KindBrokerDecryptionFailed, "decrypt failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find the wrapped cause")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewAuthError(KindAmbiguousUser, "two users"))

	if !IsKind(err, KindAmbiguousUser) {
		t.Error("IsKind() missed a wrapped AuthError")
	}
	if IsKind(err, KindServerError) {
		t.Error("IsKind() matched the wrong kind")
	}
	if IsKind(fmt.Errorf("plain"), KindServerError) {
		t.Error("IsKind() matched a non-AuthError")
	}
}

func TestRefreshTokenRejected(t *testing.T) {
	tests := []struct {
		name string
		err  *AuthError
		want bool
	}{
		{"invalid_grant", NewServerError(ProtocolCodeInvalidGrant, "", nil), true},
		{"interaction_required", NewServerError(ProtocolCodeInteractionRequired, "", nil), true},
		{"other server error", NewServerError(ProtocolCodeServerError, "", nil), false},
		{"non-server kind", NewAuthError(KindConnectionFailed, ""), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := refreshTokenRejected(tt.err); got != tt.want {
				t.Errorf("refreshTokenRejected() = %v, want %v", got, tt.want)
			}
		})
	}
}
