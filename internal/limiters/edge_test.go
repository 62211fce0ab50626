package limiters

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/trustcore/internal/rate"
)

func TestEdgeLimiterDefaults(t *testing.T) {
	l := NewEdgeLimiter(nil, EdgeLimiterConfig{})
	for _, p := range []string{"/api/ai/draft", "/v2/api/ai/chat", "/api/ai/improve"} {
		if !l.Protected(p) {
			t.Fatalf("expected %s to be protected", p)
		}
	}
	for _, p := range []string{"/", "/api/reports", "/api/ai/draft/extra"} {
		if l.Protected(p) {
			t.Fatalf("expected %s to be unprotected", p)
		}
	}
	if l.Limit() != 3 {
		t.Fatalf("expected default limit 3, got %d", l.Limit())
	}
}

func TestEdgeLimiterUnprotectedTouchesNoCounter(t *testing.T) {
	store := rate.NewShardedStore(1)
	l := NewEdgeLimiter(rate.NewLocalCounter(store), EdgeLimiterConfig{})

	for i := 0; i < 50; i++ {
		d, protected := l.Check(context.Background(), "10.0.0.1", "/api/reports")
		if protected || !d.Allowed {
			t.Fatal("unprotected path must pass through")
		}
	}
	if store.Len() != 0 {
		t.Fatalf("expected no counters, got %d", store.Len())
	}
}

func TestEdgeLimiterPerAddressPerPath(t *testing.T) {
	store := rate.NewShardedStore(1)
	l := NewEdgeLimiter(rate.NewLocalCounter(store), EdgeLimiterConfig{Limit: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if d, _ := l.Check(ctx, "10.0.0.1", "/api/ai/draft"); !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if d, _ := l.Check(ctx, "10.0.0.1", "/api/ai/draft"); d.Allowed {
		t.Fatal("third request should be denied")
	}
	if d, _ := l.Check(ctx, "10.0.0.2", "/api/ai/draft"); !d.Allowed {
		t.Fatal("other address should have its own budget")
	}
	if d, _ := l.Check(ctx, "10.0.0.1", "/api/ai/chat"); !d.Allowed {
		t.Fatal("other path should have its own budget")
	}

	found := false
	store.Update("edge:10.0.0.1:/api/ai/draft", func(w rate.Window, ok bool) (rate.Window, bool) {
		found = ok
		return w, false
	})
	if !found {
		t.Fatal("expected key edge:<ip>:<path>")
	}
}

func TestNilEdgeLimiter(t *testing.T) {
	var l *EdgeLimiter
	if d, protected := l.Check(context.Background(), "ip", "/api/ai/draft"); protected || !d.Allowed {
		t.Fatal("nil limiter must allow everything")
	}
}
