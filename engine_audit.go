package trustcore

import (
	"context"
	"errors"
)

// AuditErrorCode is the stable error vocabulary written to audit events.
type AuditErrorCode string

const (
	auditErrUnauthenticated AuditErrorCode = "unauthenticated"
	auditErrQuotaExceeded   AuditErrorCode = "quota_exceeded"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrNotFound        AuditErrorCode = "not_found"
	auditErrConfiguration   AuditErrorCode = "configuration_missing"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

// emitAudit queues one event. Timestamp is filled by the dispatcher.
func (e *Engine) emitAudit(ctx context.Context, event AuditEvent, err error) {
	if e == nil || e.audit == nil {
		return
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrQuotaExceeded):
		return auditErrQuotaExceeded
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrIdentityNotFound),
		errors.Is(err, ErrCredentialNotFound),
		errors.Is(err, ErrJobNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrConfigurationMissing):
		return auditErrConfiguration
	case errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrVerifierUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
