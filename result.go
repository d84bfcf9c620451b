package authclient

import (
	"golang.org/x/oauth2"

	"github.com/giantswarm/authclient/cache"
)

// Status is the terminal state of an acquisition request.
type Status int

// Acquisition statuses
const (
	// StatusSucceeded means a usable token was obtained.
	StatusSucceeded Status = iota

	// StatusCancelled means the user explicitly cancelled interactive sign-in.
	// Cancellation is a distinct terminal status, not a failure.
	StatusCancelled

	// StatusFailed means the acquisition failed; Err carries the cause.
	StatusFailed
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of an acquisition request. Exactly one of the three
// shapes is populated: a succeeded result carries a token and user info, a
// cancelled result carries neither, and a failed result carries Err.
type Result struct {
	// Status is the terminal state.
	Status Status

	// Token is the acquired token. Set only when Status is StatusSucceeded.
	Token *oauth2.Token

	// User identifies whom the token was issued to, when known.
	User cache.UserInfo

	// Resource is the resource the token is valid for, as reported by the
	// server.
	Resource string

	// Err is the failure cause. Set only when Status is StatusFailed.
	Err error
}

func succeededResult(item cache.Item) *Result {
	return &Result{
		Status:   StatusSucceeded,
		Token:    item.Token(),
		User:     item.User,
		Resource: item.Key.Resource(),
	}
}

func cancelledResult() *Result {
	return &Result{Status: StatusCancelled}
}

func failedResult(err error) *Result {
	return &Result{Status: StatusFailed, Err: err}
}
