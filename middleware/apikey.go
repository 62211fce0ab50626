package middleware

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/trustcore"
)

// RequireAPIKey authorizes the API key header and charges one unit of its
// quota. Missing or unknown keys get 401, an exhausted quota 429, and a
// store failure 503.
func RequireAPIKey(engine *trustcore.Engine) func(http.Handler) http.Handler {
	header := engine.APIKeyHeader()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(header))
			id, err := engine.Authorize(r.Context(), key)
			if err != nil {
				status := trustcore.StatusCode(err)
				writeError(w, status, apiKeyMessage(status))
				return
			}
			next.ServeHTTP(w, r.WithContext(trustcore.WithIdentity(r.Context(), id)))
		})
	}
}

func apiKeyMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Invalid or missing API key."
	case http.StatusTooManyRequests:
		return "API key quota exceeded."
	default:
		return "Service temporarily unavailable."
	}
}
