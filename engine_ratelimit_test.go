package trustcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestEdgeCheck(t *testing.T) {
	engine := buildTestEngine(t, New().WithConfig(testConfig()))
	ctx := context.Background()

	if d, protected := engine.EdgeCheck(ctx, "10.0.0.1", "/api/complaints"); protected || !d.Allowed {
		t.Fatalf("unprotected path: %+v protected=%v", d, protected)
	}
	if engine.local.Store().Len() != 0 {
		t.Fatal("unprotected paths must not touch a counter")
	}

	for i := 0; i < 3; i++ {
		d, protected := engine.EdgeCheck(ctx, "10.0.0.1", "/api/ai/draft")
		if !protected || !d.Allowed {
			t.Fatalf("request %d: %+v protected=%v", i+1, d, protected)
		}
	}
	d, _ := engine.EdgeCheck(ctx, "10.0.0.1", "/api/ai/draft")
	if d.Allowed {
		t.Fatal("fourth request in the window must be throttled")
	}
	if d.RetryAfter(time.Now()) <= 0 {
		t.Fatal("denied decision must carry a retry hint")
	}

	if d, _ := engine.EdgeCheck(ctx, "10.0.0.1", "/api/ai/chat"); !d.Allowed {
		t.Fatal("other protected path has its own window")
	}
	if d, _ := engine.EdgeCheck(ctx, "10.0.0.2", "/api/ai/draft"); !d.Allowed {
		t.Fatal("other address has its own window")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricEdgeThrottled] != 1 || snap.Counters[MetricEdgeAllowed] != 5 {
		t.Fatalf("unexpected edge metrics %v/%v", snap.Counters[MetricEdgeAllowed], snap.Counters[MetricEdgeThrottled])
	}
}

func TestEdgeCheckDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Edge.Enabled = false
	engine := buildTestEngine(t, New().WithConfig(cfg))

	for i := 0; i < 10; i++ {
		if d, protected := engine.EdgeCheck(context.Background(), "10.0.0.1", "/api/ai/draft"); protected || !d.Allowed {
			t.Fatalf("disabled edge filter must pass everything, got %+v", d)
		}
	}
}

func TestAllowLocal(t *testing.T) {
	engine := buildTestEngine(t, New().WithConfig(testConfig()))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if d := engine.AllowLocal(ctx, "k", 2, time.Minute); !d.Allowed {
			t.Fatalf("hit %d denied", i+1)
		}
	}
	d := engine.AllowLocal(ctx, "k", 2, time.Minute)
	if d.Allowed || d.Remaining != 0 || d.Limit != 2 {
		t.Fatalf("third hit: %+v", d)
	}
}

func TestAllowDistributedRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithRedis(rdb))
	ctx := context.Background()

	if !engine.DistributedEnabled() {
		t.Fatal("redis client must enable the distributed counter")
	}
	for i := 1; i <= 3; i++ {
		d, err := engine.AllowDistributed(ctx, "ai:42", 3, time.Hour)
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if !d.Allowed || d.Remaining != 3-i {
			t.Fatalf("hit %d: %+v", i, d)
		}
	}
	d, err := engine.AllowDistributed(ctx, "ai:42", 3, time.Hour)
	if err != nil || d.Allowed {
		t.Fatalf("fourth hit: %+v %v", d, err)
	}

	if err := engine.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if ttl := mr.TTL("tc:rl:ai:42"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected window TTL, got %s", ttl)
	}
}

func TestAllowDistributedUnconfigured(t *testing.T) {
	engine := buildTestEngine(t, New().WithConfig(testConfig()))
	_, err := engine.AllowDistributed(context.Background(), "k", 1, time.Minute)
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestAllowDistributedUnreachable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithRedis(rdb))
	mr.Close()

	_, err := engine.AllowDistributed(context.Background(), "k", 1, time.Minute)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if engine.MetricsSnapshot().Counters[MetricDistributedError] != 1 {
		t.Fatal("expected distributed error metric")
	}
}

func TestAllowResource(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.RateLimit.Resources = map[string]ResourcePolicy{"ai": {Limit: 2, Window: time.Hour}}
	engine := buildTestEngine(t, New().WithConfig(cfg).WithRedis(rdb))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if d, err := engine.AllowResource(ctx, "ai", "42"); err != nil || !d.Allowed {
			t.Fatalf("use %d: %+v %v", i+1, d, err)
		}
	}
	if d, err := engine.AllowResource(ctx, "ai", "42"); err != nil || d.Allowed {
		t.Fatalf("third use: %+v %v", d, err)
	}
	if d, err := engine.AllowResource(ctx, "ai", "43"); err != nil || !d.Allowed {
		t.Fatalf("other subject: %+v %v", d, err)
	}
	if _, err := engine.AllowResource(ctx, "uploads", "42"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
}

func TestAllowResourceFallsBackToLocalCounter(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Resources = map[string]ResourcePolicy{"ai": {Limit: 1, Window: time.Hour}}
	engine := buildTestEngine(t, New().WithConfig(cfg))
	ctx := context.Background()

	if d, err := engine.AllowResource(ctx, "ai", "42"); err != nil || !d.Allowed {
		t.Fatalf("first use: %+v %v", d, err)
	}
	if d, err := engine.AllowResource(ctx, "ai", "42"); err != nil || d.Allowed {
		t.Fatalf("second use: %+v %v", d, err)
	}
}
