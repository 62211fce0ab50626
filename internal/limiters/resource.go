package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/trustcore/internal/rate"
)

const resourceKeyPrefix = "res:"

var (
	ErrUnknownResource     = errors.New("unknown rate-limited resource")
	ErrResourceUnavailable = errors.New("resource limiter unavailable")
)

// ResourcePolicy is the budget for one named resource.
type ResourcePolicy struct {
	Limit  int
	Window time.Duration
}

// ResourceLimiter meters named resources (report creation, uploads, ...) per
// subject on a shared counter.
type ResourceLimiter struct {
	counter  rate.Limiter
	policies map[string]ResourcePolicy
}

// NewResourceLimiter creates a limiter over counter. Policies with a
// non-positive limit or window are ignored.
func NewResourceLimiter(counter rate.Limiter, policies map[string]ResourcePolicy) *ResourceLimiter {
	p := make(map[string]ResourcePolicy, len(policies))
	for name, pol := range policies {
		if name == "" || pol.Limit <= 0 || pol.Window <= 0 {
			continue
		}
		p[name] = pol
	}
	return &ResourceLimiter{counter: counter, policies: p}
}

// Policy returns the policy registered for resource.
func (l *ResourceLimiter) Policy(resource string) (ResourcePolicy, bool) {
	if l == nil {
		return ResourcePolicy{}, false
	}
	p, ok := l.policies[resource]
	return p, ok
}

// Allow counts one use of resource by subject. Backend failures are wrapped
// in ErrResourceUnavailable and keep rate.ErrUpstreamUnavailable in the chain.
func (l *ResourceLimiter) Allow(ctx context.Context, resource, subject string) (rate.Decision, error) {
	pol, ok := l.Policy(resource)
	if !ok {
		return rate.Decision{}, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	if l.counter == nil {
		return rate.Decision{}, fmt.Errorf("%w: no counter", ErrResourceUnavailable)
	}
	d, err := l.counter.Allow(ctx, resourceKey(resource, subject), pol.Limit, pol.Window)
	if err != nil {
		return rate.Decision{}, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	return d, nil
}

func resourceKey(resource, subject string) string {
	return resourceKeyPrefix + resource + ":" + subject
}
