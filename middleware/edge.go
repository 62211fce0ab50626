package middleware

import (
	"net/http"
	"time"

	"github.com/MrEthical07/trustcore"
)

// EdgeThrottle rejects requests to protected paths once the caller's
// address exceeds the edge window. Every request gets its client address
// attached to the context, protected or not.
func EdgeThrottle(engine *trustcore.Engine) func(http.Handler) http.Handler {
	trustXFF := engine != nil && engine.Config().RateLimit.Edge.TrustForwardedFor

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustXFF)
			ctx := trustcore.WithClientIP(r.Context(), ip)
			r = r.WithContext(ctx)

			d, protected := engine.EdgeCheck(ctx, ip, r.URL.Path)
			if !protected {
				next.ServeHTTP(w, r)
				return
			}
			setRateHeaders(w, d, time.Now())
			if !d.Allowed {
				writeError(w, http.StatusTooManyRequests, edgeDeniedMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
