package trustcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/trustcore/internal/apikey"
)

// DefaultAPIKeyHeader is the request header carrying the API key.
const DefaultAPIKeyHeader = "X-API-Key"

// Authorize checks key and charges one unit of its quota.
//
// Denials are *Denial values: missing or unknown keys wrap
// ErrUnauthenticated (401), an exhausted quota wraps ErrQuotaExceeded (429)
// and leaves usage untouched. The charge is a limit-guarded increment at the
// store, so concurrent callers below the limit are all admitted without
// retries. Store failures return ErrUpstreamUnavailable.
func (e *Engine) Authorize(ctx context.Context, key string) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}
	if e.credentials == nil {
		return Identity{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.metricObserve(MetricAuthorizeLatency, start)

	var (
		mu   sync.Mutex
		last Credential
	)
	deps := apikey.Deps{
		Lookup: func(ctx context.Context, key string) (apikey.Usage, error) {
			c, err := e.credentials.LookupCredential(ctx, key)
			if err != nil {
				return apikey.Usage{}, err
			}
			mu.Lock()
			last = c
			mu.Unlock()
			limit, _ := c.Quota.Limit()
			return apikey.Usage{Used: c.QuotaUsed, Limit: limit, Unlimited: c.Quota.IsUnlimited()}, nil
		},
		ConsumeQuota: e.credentials.ConsumeQuota,
		NotFound:     ErrCredentialNotFound,
		Timeout:      e.config.APIKey.StoreTimeout,
	}

	result := apikey.RunAuthorize(ctx, key, deps)

	mu.Lock()
	cred := last
	mu.Unlock()

	switch result.Failure {
	case apikey.FailureNone:
		e.metricInc(MetricAPIKeyAccepted)
		e.emitAudit(ctx, AuditEvent{EventType: AuditAPIKeyAccepted, IdentityID: cred.Identity.ID, Success: true}, nil)
		return cred.Identity, nil

	case apikey.FailureMissingKey, apikey.FailureUnknownKey:
		e.metricInc(MetricAPIKeyUnauthenticated)
		d := deny(ErrUnauthenticated, result.Failure.String(), http.StatusUnauthorized)
		e.emitAudit(ctx, AuditEvent{EventType: AuditAPIKeyDenied, Reason: d.Reason}, d)
		return Identity{}, d

	case apikey.FailureQuotaExceeded:
		e.metricInc(MetricAPIKeyQuotaExceeded)
		d := deny(ErrQuotaExceeded, result.Failure.String(), http.StatusTooManyRequests)
		e.emitAudit(ctx, AuditEvent{EventType: AuditAPIKeyDenied, IdentityID: cred.Identity.ID, Reason: d.Reason}, d)
		return Identity{}, d

	default:
		e.metricInc(MetricAPIKeyUpstreamError)
		e.logger.Error("trustcore: credential store failure", slog.Any("error", result.Err))
		if errors.Is(result.Err, ErrUpstreamUnavailable) {
			return Identity{}, result.Err
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, result.Err)
	}
}

// APIKeyHeader returns the configured API key header name.
func (e *Engine) APIKeyHeader() string {
	if e == nil || e.config.APIKey.Header == "" {
		return DefaultAPIKeyHeader
	}
	return e.config.APIKey.Header
}
