package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/trustcore"
)

// SubjectFunc picks the subject a resource is metered against.
type SubjectFunc func(r *http.Request) string

// ResourceOption configures ResourceLimit.
type ResourceOption func(*resourceOptions)

type resourceOptions struct {
	subject  SubjectFunc
	failOpen bool
	logger   *slog.Logger
}

// WithSubject replaces the default subject: the context identity, else the
// client address.
func WithSubject(fn SubjectFunc) ResourceOption {
	return func(o *resourceOptions) { o.subject = fn }
}

// FailOpen lets requests through when the counter backend is unavailable.
// The default answers 503.
func FailOpen() ResourceOption {
	return func(o *resourceOptions) { o.failOpen = true }
}

// WithLogger sets where backend failures are reported.
func WithLogger(l *slog.Logger) ResourceOption {
	return func(o *resourceOptions) { o.logger = l }
}

// ResourceLimit meters one use of resource per request.
func ResourceLimit(engine *trustcore.Engine, resource string, opts ...ResourceOption) func(http.Handler) http.Handler {
	o := resourceOptions{subject: defaultSubject, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := engine.AllowResource(r.Context(), resource, o.subject(r))
			if err != nil {
				if o.failOpen && errors.Is(err, trustcore.ErrUpstreamUnavailable) {
					o.logger.Warn("resource limiter unavailable, failing open",
						slog.String("resource", resource), slog.Any("error", err))
					next.ServeHTTP(w, r)
					return
				}
				o.logger.Error("resource limiter failed", slog.String("resource", resource), slog.Any("error", err))
				writeJSON(w, trustcore.StatusCode(err), envelope{Error: "Service temporarily unavailable."})
				return
			}
			setRateHeaders(w, d, time.Now())
			if !d.Allowed {
				writeJSON(w, http.StatusTooManyRequests, envelope{Error: resourceDeniedMessage})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultSubject(r *http.Request) string {
	if id, ok := trustcore.IdentityFromContext(r.Context()); ok {
		return "id:" + id.Subject()
	}
	if ip, ok := trustcore.ClientIPFromContext(r.Context()); ok {
		return "ip:" + ip
	}
	return "ip:" + ClientIP(r, false)
}
