package limiters

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/trustcore/internal/rate"
)

const (
	defaultEdgeLimit  = 3
	defaultEdgeWindow = time.Minute
	edgeKeyPrefix     = "edge:"
)

// DefaultEdgeSuffixes are the AI drafting endpoints guarded when no suffixes
// are configured.
var DefaultEdgeSuffixes = []string{"/api/ai/draft", "/api/ai/improve", "/api/ai/chat"}

// EdgeLimiterConfig holds the edge throttle policy.
type EdgeLimiterConfig struct {
	ProtectedSuffixes []string
	Limit             int
	Window            time.Duration
}

// EdgeLimiter throttles protected paths per client address and path on a
// process-local counter. Unprotected paths never touch the counter.
type EdgeLimiter struct {
	counter  *rate.LocalCounter
	suffixes []string
	limit    int
	window   time.Duration
}

// NewEdgeLimiter creates an edge limiter. Zero-value fields in cfg fall back
// to defaults (3 requests / 60s on DefaultEdgeSuffixes).
func NewEdgeLimiter(counter *rate.LocalCounter, cfg EdgeLimiterConfig) *EdgeLimiter {
	suffixes := cfg.ProtectedSuffixes
	if len(suffixes) == 0 {
		suffixes = DefaultEdgeSuffixes
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultEdgeLimit
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultEdgeWindow
	}
	if counter == nil {
		counter = rate.NewLocalCounter(nil)
	}
	return &EdgeLimiter{
		counter:  counter,
		suffixes: append([]string(nil), suffixes...),
		limit:    limit,
		window:   window,
	}
}

// Protected reports whether path ends in one of the configured suffixes.
func (l *EdgeLimiter) Protected(path string) bool {
	if l == nil {
		return false
	}
	for _, s := range l.suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// Check applies the edge policy to one request. The boolean reports whether
// the path was protected; for unprotected paths the decision is an allow and
// no state changes.
func (l *EdgeLimiter) Check(ctx context.Context, clientIP, path string) (rate.Decision, bool) {
	if !l.Protected(path) {
		return rate.Decision{Allowed: true}, false
	}
	d, _ := l.counter.Allow(ctx, edgeKey(clientIP, path), l.limit, l.window)
	return d, true
}

// Limit returns the configured request budget per window.
func (l *EdgeLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.limit
}

func edgeKey(clientIP, path string) string {
	return edgeKeyPrefix + clientIP + ":" + path
}
