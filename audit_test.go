package trustcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func auditConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	return cfg
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditSessionEvents(t *testing.T) {
	sink := NewChannelSink(16)
	dir := newFakeDirectory(Identity{ID: 42})
	engine := buildTestEngine(t, New().WithConfig(auditConfig()).WithDirectory(dir).WithAuditSink(sink))
	ctx := WithClientIP(context.Background(), "203.0.113.9")

	if _, err := engine.IssueSession(ctx, 42); err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	ev := nextEvent(t, sink)
	if ev.EventType != AuditSessionIssued || ev.IdentityID != 42 || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.IP != "203.0.113.9" {
		t.Fatalf("client ip not recorded: %q", ev.IP)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("timestamp must be filled")
	}

	engine.ResolveSession(ctx, "42.deadbeef")
	ev = nextEvent(t, sink)
	if ev.EventType != AuditSessionRejected || ev.Error != "unauthenticated" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditThrottleAndQuota(t *testing.T) {
	sink := NewChannelSink(16)
	creds := newFakeCredentials(Credential{Identity: Identity{ID: 5}, Key: "k", Quota: Limited(0)})
	engine := buildTestEngine(t, New().WithConfig(auditConfig()).WithCredentialStore(creds).WithAuditSink(sink))
	ctx := context.Background()

	if _, err := engine.Authorize(ctx, "k"); err == nil {
		t.Fatal("expected quota denial")
	}
	ev := nextEvent(t, sink)
	if ev.EventType != AuditAPIKeyDenied || ev.Error != "quota_exceeded" || ev.IdentityID != 5 {
		t.Fatalf("unexpected event %+v", ev)
	}

	for i := 0; i < 4; i++ {
		engine.EdgeCheck(ctx, "10.0.0.1", "/api/ai/chat")
	}
	ev = nextEvent(t, sink)
	if ev.EventType != AuditEdgeThrottled || ev.Path != "/api/ai/chat" || ev.Error != "rate_limited" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditJSONWriterSink(t *testing.T) {
	var out lockedBuffer
	jobs := newFakeJobs(pendingJob("job-1"))
	engine, err := New().
		WithConfig(auditConfig()).
		WithJobStore(jobs).
		WithNotifier(&recordingNotifier{}).
		WithAuditSink(NewJSONWriterSink(&out)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := engine.Fulfill(context.Background(), "job-1"); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	engine.Close()

	line := strings.TrimSpace(out.String())
	var ev AuditEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if ev.EventType != AuditFulfillmentFiled || ev.JobID != "job-1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(4)
	engine := buildTestEngine(t, New().WithConfig(testConfig()).WithAuditSink(sink))

	if _, err := engine.IssueSession(context.Background(), 1); err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if engine.AuditDropped() != 0 {
		t.Fatal("disabled audit drops nothing")
	}
}
