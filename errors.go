package trustcore

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/trustcore/internal/rate"
	"github.com/MrEthical07/trustcore/token"
)

var (
	// ErrUnauthenticated means no credential was presented or it did not verify.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is reserved for callers: a valid identity lacking privilege.
	ErrForbidden = errors.New("forbidden")
	// ErrQuotaExceeded means the API key has used its whole quota.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrRateLimited means a throttle denied the request.
	ErrRateLimited = rate.ErrRateLimited
	// ErrConfigurationMissing means a required secret or backend is not configured.
	ErrConfigurationMissing = token.ErrConfigurationMissing
	// ErrUpstreamUnavailable wraps dependency failures and timeouts. Callers
	// choose fail-open or fail-closed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrConflictAlreadyFulfilled marks a fulfillment lost to a concurrent
	// dispatcher. Fulfill absorbs it as a no-op.
	ErrConflictAlreadyFulfilled = errors.New("already fulfilled")
	// ErrIdentityNotFound is returned by a Directory for an unknown subject.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrCredentialNotFound is returned by a CredentialStore for an unknown key.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrJobNotFound is returned by a JobStore for an unknown job.
	ErrJobNotFound = errors.New("job not found")
	// ErrVerifierUnavailable is returned by a TokenVerifier that cannot reach
	// its key source. SignIn then falls back to the asserted subject.
	ErrVerifierUnavailable = errors.New("token verifier unavailable")
	// ErrEngineNotReady is returned when a required collaborator was not supplied.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrUnknownResource is returned by AllowResource for an unregistered resource.
	ErrUnknownResource = errors.New("unknown rate-limited resource")
)

// Denial is a terminal, user-visible rejection carrying a status hint.
type Denial struct {
	Err    error
	Reason string
	Status int
}

func (d *Denial) Error() string {
	if d == nil || d.Err == nil {
		return "denied"
	}
	if d.Reason == "" {
		return d.Err.Error()
	}
	return d.Err.Error() + ": " + d.Reason
}

func (d *Denial) Unwrap() error {
	if d == nil {
		return nil
	}
	return d.Err
}

func deny(err error, reason string, status int) *Denial {
	return &Denial{Err: err, Reason: reason, Status: status}
}

// StatusCode maps err to an HTTP status.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var d *Denial
	if errors.As(err, &d) && d.Status != 0 {
		return d.Status
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrIdentityNotFound), errors.Is(err, ErrCredentialNotFound),
		errors.Is(err, ErrJobNotFound), errors.Is(err, ErrUnknownResource):
		return http.StatusNotFound
	case errors.Is(err, ErrConflictAlreadyFulfilled):
		return http.StatusConflict
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, ErrVerifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
