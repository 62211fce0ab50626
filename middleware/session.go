package middleware

import (
	"net/http"

	"github.com/MrEthical07/trustcore"
)

// Session resolves the session cookie when present and attaches the
// identity to the context. Requests without a valid session continue
// anonymously.
func Session(engine *trustcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := resolve(engine, r); ok {
				r = r.WithContext(trustcore.WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession is Session that answers 401 for anonymous callers.
func RequireSession(engine *trustcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := resolve(engine, r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required.")
				return
			}
			next.ServeHTTP(w, r.WithContext(trustcore.WithIdentity(r.Context(), id)))
		})
	}
}

func resolve(engine *trustcore.Engine, r *http.Request) (trustcore.Identity, bool) {
	if id, ok := trustcore.IdentityFromContext(r.Context()); ok {
		return id, true
	}
	c, err := r.Cookie(trustcore.SessionCookieName)
	if err != nil || c.Value == "" {
		return trustcore.Identity{}, false
	}
	return engine.ResolveSession(r.Context(), c.Value)
}
