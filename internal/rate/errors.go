package rate

import "errors"

var (
	// ErrRateLimited is returned by callers that turn a denied Decision into an error.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstreamUnavailable wraps backend failures and timeouts.
	ErrUpstreamUnavailable = errors.New("rate counter backend unavailable")
)
