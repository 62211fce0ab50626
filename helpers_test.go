package trustcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

const testSecret = "s3cr3t"

type fakeDirectory struct {
	mu      sync.Mutex
	byID    map[int64]Identity
	failing error
	calls   int
}

func newFakeDirectory(ids ...Identity) *fakeDirectory {
	d := &fakeDirectory{byID: make(map[int64]Identity, len(ids))}
	for _, id := range ids {
		d.byID[id.ID] = id
	}
	return d
}

func (d *fakeDirectory) LookupIdentity(_ context.Context, id int64) (Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failing != nil {
		return Identity{}, d.failing
	}
	ident, ok := d.byID[id]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return ident, nil
}

func (d *fakeDirectory) LookupIdentityByEmail(_ context.Context, email string) (Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ident := range d.byID {
		if strings.EqualFold(ident.Email, email) {
			return ident, nil
		}
	}
	return Identity{}, ErrIdentityNotFound
}

type fakeCredentials struct {
	mu      sync.Mutex
	byKey   map[string]Credential
	failing error
}

func newFakeCredentials(creds ...Credential) *fakeCredentials {
	s := &fakeCredentials{byKey: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		s.byKey[c.Key] = c
	}
	return s
}

func (s *fakeCredentials) LookupCredential(_ context.Context, key string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return Credential{}, s.failing
	}
	c, ok := s.byKey[key]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return c, nil
}

func (s *fakeCredentials) ConsumeQuota(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byKey[key]
	if !ok {
		return false, ErrCredentialNotFound
	}
	if c.Quota.Exhausted(c.QuotaUsed) {
		return false, nil
	}
	c.QuotaUsed++
	s.byKey[key] = c
	return true, nil
}

func (s *fakeCredentials) used(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKey[key].QuotaUsed
}

type fakeJobs struct {
	mu      sync.Mutex
	jobs    map[string]Job
	failing error
}

func newFakeJobs(jobs ...Job) *fakeJobs {
	s := &fakeJobs{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobs) LoadJob(_ context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return Job{}, s.failing
	}
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j, nil
}

func (s *fakeJobs) TransitionJobStatus(_ context.Context, id string, from, to JobStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	s.jobs[id] = j
	return true, nil
}

func (s *fakeJobs) status(id string) JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id].Status
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

type fakeVerifier struct {
	claims FederatedClaims
	err    error
}

func (v fakeVerifier) VerifyIDToken(context.Context, string) (FederatedClaims, error) {
	return v.claims, v.err
}

var errBackendDown = errors.New("backend down")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.Secret = testSecret
	cfg.RateLimit.Edge.JanitorInterval = 0
	return cfg
}

func buildTestEngine(t *testing.T, b *Builder) *Engine {
	t.Helper()
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})
	return engine
}
