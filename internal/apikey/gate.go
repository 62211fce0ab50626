package apikey

import (
	"context"
	"errors"
	"time"
)

const defaultTimeout = 2 * time.Second

// Failure classifies why RunAuthorize rejected a key.
type Failure int

const (
	FailureNone Failure = iota
	FailureMissingKey
	FailureUnknownKey
	FailureQuotaExceeded
	FailureUpstream
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureMissingKey:
		return "missing_key"
	case FailureUnknownKey:
		return "unknown_key"
	case FailureQuotaExceeded:
		return "quota_exceeded"
	case FailureUpstream:
		return "upstream_unavailable"
	default:
		return "unknown"
	}
}

// Usage is the quota state of one credential at lookup time.
type Usage struct {
	Used      int64
	Limit     int64
	Unlimited bool
}

// Exhausted reports whether no further use is permitted.
func (u Usage) Exhausted() bool {
	return !u.Unlimited && u.Used >= u.Limit
}

// Deps are the collaborators of RunAuthorize.
type Deps struct {
	// Lookup returns the credential's usage. NotFound in its error chain
	// means the key is unknown.
	Lookup func(ctx context.Context, key string) (Usage, error)
	// ConsumeQuota increments used by one only while the quota permits it,
	// as one atomic step at the store. It reports false when the quota is
	// exhausted and NotFound when the key disappeared.
	ConsumeQuota func(ctx context.Context, key string) (bool, error)
	NotFound     error
	// Timeout bounds each store call.
	Timeout time.Duration
}

// Result is the outcome of one RunAuthorize call. Usage.Used is the value
// read at lookup plus the charged unit; concurrent charges may have moved
// the stored value further.
type Result struct {
	Failure Failure
	Err     error
	Usage   Usage
}

// OK reports whether the key was accepted and charged.
func (r Result) OK() bool {
	return r.Failure == FailureNone
}

// RunAuthorize validates key and charges one unit of quota.
func RunAuthorize(ctx context.Context, key string, deps Deps) Result {
	if key == "" {
		return Result{Failure: FailureMissingKey}
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	usage, err := lookup(ctx, key, deps, timeout)
	if err != nil {
		return Result{Failure: classify(err, deps), Err: err}
	}
	if usage.Exhausted() {
		return Result{Failure: FailureQuotaExceeded, Usage: usage}
	}

	charged, err := consume(ctx, key, deps, timeout)
	if err != nil {
		return Result{Failure: classify(err, deps), Err: err, Usage: usage}
	}
	if !charged {
		return Result{Failure: FailureQuotaExceeded, Usage: usage}
	}
	usage.Used++
	return Result{Usage: usage}
}

func classify(err error, deps Deps) Failure {
	if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
		return FailureUnknownKey
	}
	return FailureUpstream
}

func lookup(ctx context.Context, key string, deps Deps, timeout time.Duration) (Usage, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return deps.Lookup(callCtx, key)
}

func consume(ctx context.Context, key string, deps Deps, timeout time.Duration) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return deps.ConsumeQuota(callCtx, key)
}
