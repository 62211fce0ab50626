package trustcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/trustcore/token"
)

const (
	// SessionCookieName is the fixed name of the session cookie.
	SessionCookieName = "session_token"
	// SessionMaxAge is the session cookie lifetime. Tokens carry no expiry.
	SessionMaxAge = 30 * 24 * time.Hour
)

// IssueSession signs a session token for subjectID.
func (e *Engine) IssueSession(ctx context.Context, subjectID int64) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	tok, err := e.codec.Sign(subjectID)
	if err != nil {
		if errors.Is(err, token.ErrInvalidSubject) {
			return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return "", err
	}
	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, AuditEvent{EventType: AuditSessionIssued, IdentityID: subjectID, Success: true}, nil)
	return tok, nil
}

// ResolveSession verifies raw and looks its subject up in the directory.
// Every failure, including a directory outage, resolves to anonymous.
func (e *Engine) ResolveSession(ctx context.Context, raw string) (Identity, bool) {
	if e == nil || raw == "" {
		return Identity{}, false
	}
	subjectID, ok := e.codec.Verify(raw)
	if !ok {
		e.metricInc(MetricSessionRejected)
		e.emitAudit(ctx, AuditEvent{EventType: AuditSessionRejected, Reason: "invalid_token"}, ErrUnauthenticated)
		return Identity{}, false
	}

	id, err := e.lookupIdentity(ctx, subjectID)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		if errors.Is(err, ErrIdentityNotFound) {
			e.emitAudit(ctx, AuditEvent{EventType: AuditSessionRejected, IdentityID: subjectID, Reason: "unknown_subject"}, err)
		} else {
			e.logger.Warn("trustcore: session directory lookup failed", slog.Int64("subject_id", subjectID), slog.Any("error", err))
		}
		return Identity{}, false
	}
	e.metricInc(MetricSessionResolved)
	return id, true
}

// SignIn exchanges an assertion for a session token.
//
// With a TokenVerifier and an ID token, the verified claims pick the
// subject: a verified email via EmailDirectory when available, otherwise a
// numeric Subject. A verifier reporting ErrVerifierUnavailable, or no
// verifier at all, falls back to the asserted SubjectID. Any other verifier
// error is ErrUnauthenticated.
func (e *Engine) SignIn(ctx context.Context, a Assertion) (Identity, string, error) {
	if e == nil {
		return Identity{}, "", ErrEngineNotReady
	}

	id, err := e.signInIdentity(ctx, a)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		return Identity{}, "", err
	}

	tok, err := e.IssueSession(ctx, id.ID)
	if err != nil {
		e.metricInc(MetricSignInFailure)
		return Identity{}, "", err
	}
	e.metricInc(MetricSignInSuccess)
	return id, tok, nil
}

func (e *Engine) signInIdentity(ctx context.Context, a Assertion) (Identity, error) {
	if e.verifier != nil && a.IDToken != "" {
		claims, err := e.verifier.VerifyIDToken(ctx, a.IDToken)
		switch {
		case err == nil:
			return e.identityFromClaims(ctx, claims)
		case errors.Is(err, ErrVerifierUnavailable):
			e.metricInc(MetricSignInVerifierFallback)
			e.logger.Warn("trustcore: token verifier unavailable, using asserted subject", slog.Any("error", err))
		default:
			return Identity{}, deny(ErrUnauthenticated, "invalid_id_token", http.StatusUnauthorized)
		}
	}

	if a.SubjectID <= 0 {
		return Identity{}, deny(ErrUnauthenticated, "missing_subject", http.StatusUnauthorized)
	}
	return e.resolveForSignIn(ctx, a.SubjectID)
}

func (e *Engine) identityFromClaims(ctx context.Context, claims FederatedClaims) (Identity, error) {
	if ed, ok := e.directory.(EmailDirectory); ok && claims.Email != "" && claims.EmailVerified {
		lookupCtx, cancel := context.WithTimeout(ctx, e.config.Session.LookupTimeout)
		defer cancel()
		id, err := ed.LookupIdentityByEmail(lookupCtx, claims.Email)
		if err != nil {
			return Identity{}, signInLookupError(err)
		}
		return id, nil
	}

	subjectID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || subjectID <= 0 {
		return Identity{}, deny(ErrUnauthenticated, "unmapped_subject", http.StatusUnauthorized)
	}
	return e.resolveForSignIn(ctx, subjectID)
}

func (e *Engine) resolveForSignIn(ctx context.Context, subjectID int64) (Identity, error) {
	id, err := e.lookupIdentity(ctx, subjectID)
	if err != nil {
		return Identity{}, signInLookupError(err)
	}
	return id, nil
}

func signInLookupError(err error) error {
	switch {
	case errors.Is(err, ErrIdentityNotFound):
		return &Denial{Err: fmt.Errorf("%w: %w", ErrUnauthenticated, err), Reason: "unknown_subject", Status: http.StatusUnauthorized}
	case errors.Is(err, ErrEngineNotReady), errors.Is(err, ErrUpstreamUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
}

func (e *Engine) lookupIdentity(ctx context.Context, subjectID int64) (Identity, error) {
	if e.directory == nil {
		return Identity{}, ErrEngineNotReady
	}
	lookupCtx, cancel := context.WithTimeout(ctx, e.config.Session.LookupTimeout)
	defer cancel()

	id, err := e.directory.LookupIdentity(lookupCtx, subjectID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return id, nil
}

// SessionCookie wraps tok in the session cookie.
func (e *Engine) SessionCookie(tok string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(SessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   e != nil && e.config.Security.ProductionMode,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie returns a cookie that removes the session cookie.
func (e *Engine) ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   e != nil && e.config.Security.ProductionMode,
		SameSite: http.SameSiteLaxMode,
	}
}
