package trustcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/trustcore/internal/limiters"
	"github.com/MrEthical07/trustcore/internal/rate"
)

// Decision is the outcome of one counter observation.
type Decision = rate.Decision

// AllowLocal applies a fixed window on the process-local counter. It never
// fails.
func (e *Engine) AllowLocal(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if e == nil || e.local == nil {
		return Decision{Allowed: true}
	}
	d, _ := e.local.Allow(ctx, key, limit, window)
	return d
}

// EdgeCheck applies the edge throttle to one request. protected is false for
// paths outside the configured suffixes; those never touch a counter.
func (e *Engine) EdgeCheck(ctx context.Context, clientIP, path string) (d Decision, protected bool) {
	if e == nil {
		return Decision{Allowed: true}, false
	}
	rd, protected := e.edge.Check(ctx, clientIP, path)
	if !protected {
		return Decision{Allowed: true}, false
	}
	if rd.Allowed {
		e.metricInc(MetricEdgeAllowed)
	} else {
		e.metricInc(MetricEdgeThrottled)
		e.emitAudit(ctx, AuditEvent{EventType: AuditEdgeThrottled, IP: clientIP, Path: path}, ErrRateLimited)
	}
	return rd, true
}

// EdgeProtected reports whether path is guarded by the edge throttle.
func (e *Engine) EdgeProtected(path string) bool {
	return e != nil && e.edge.Protected(path)
}

// AllowDistributed counts one hit of key on the shared counter. It returns
// ErrConfigurationMissing when no backend is configured and
// ErrUpstreamUnavailable when the backend fails or times out.
func (e *Engine) AllowDistributed(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if e == nil {
		return Decision{}, ErrEngineNotReady
	}
	if e.distributed == nil {
		return Decision{}, fmt.Errorf("%w: distributed counter backend", ErrConfigurationMissing)
	}
	d, err := e.distributed.Allow(ctx, key, limit, window)
	if err != nil {
		e.metricInc(MetricDistributedError)
		e.logger.Warn("trustcore: distributed counter failed", slog.Any("error", err))
		return Decision{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if d.Allowed {
		e.metricInc(MetricDistributedAllowed)
	} else {
		e.metricInc(MetricDistributedDenied)
	}
	return d, nil
}

// AllowResource meters one use of a named resource by subject.
func (e *Engine) AllowResource(ctx context.Context, resource, subject string) (Decision, error) {
	if e == nil || e.resources == nil {
		return Decision{}, ErrEngineNotReady
	}
	d, err := e.resources.Allow(ctx, resource, subject)
	if err != nil {
		if errors.Is(err, limiters.ErrUnknownResource) {
			return Decision{}, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
		}
		e.metricInc(MetricDistributedError)
		e.logger.Warn("trustcore: resource limiter failed", slog.String("resource", resource), slog.Any("error", err))
		return Decision{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !d.Allowed {
		e.metricInc(MetricResourceThrottled)
		e.emitAudit(ctx, AuditEvent{EventType: AuditResourceThrottled, Resource: resource, Reason: subject}, ErrRateLimited)
	}
	return d, nil
}
