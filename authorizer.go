package authclient

import (
	"context"

	"github.com/giantswarm/authclient/broker"
)

// Authorizer presents interactive authorization UI. The library never renders
// UI itself: given the authorization start URL and the redirect URI, the
// authorizer drives the user through sign-in and reports how it ended.
//
// Implementations typically wrap an embedded webview, the system browser, or
// a trusted sign-in broker process.
type Authorizer interface {
	// StartAuthorization runs the interactive flow. It returns an Outcome
	// carrying the authorization code, a brokered response, or a cancellation;
	// any other failure is returned as an error.
	StartAuthorization(ctx context.Context, startURL, redirectURI string) (*Outcome, error)
}

// Outcome is the result of an interactive authorization attempt. Exactly one
// of Code, Broker, or Cancelled is meaningful.
type Outcome struct {
	// Code is the authorization code to exchange at the token endpoint.
	Code string

	// Broker is set instead of Code when sign-in was delegated to a broker
	// process, which returns tokens directly in an encrypted message.
	Broker *broker.Message

	// Cancelled reports explicit user cancellation.
	Cancelled bool
}
