package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/trustcore"
)

const (
	edgeDeniedMessage     = "Too many requests. Please try again later."
	resourceDeniedMessage = "Rate limit exceeded. Please try again later."
)

type errorBody struct {
	Error string `json:"error"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// setRateHeaders writes Retry-After in whole seconds, never below one.
func setRateHeaders(w http.ResponseWriter, d trustcore.Decision, now time.Time) {
	if d.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	}
	if d.Allowed {
		return
	}
	secs := int(math.Ceil(d.RetryAfter(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}
