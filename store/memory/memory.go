// Package memory is an in-process implementation of the trustcore store
// interfaces for tests, examples and single-node development.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/MrEthical07/trustcore"
)

// Store implements trustcore.Directory, trustcore.EmailDirectory,
// trustcore.CredentialStore and trustcore.JobStore under one mutex.
type Store struct {
	mu          sync.RWMutex
	identities  map[int64]trustcore.Identity
	credentials map[string]trustcore.Credential
	jobs        map[string]trustcore.Job
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		identities:  make(map[int64]trustcore.Identity),
		credentials: make(map[string]trustcore.Credential),
		jobs:        make(map[string]trustcore.Job),
	}
}

// PutIdentity adds or replaces an identity.
func (s *Store) PutIdentity(id trustcore.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.ID] = id
}

// PutCredential adds or replaces a credential. The identity is stored with
// it.
func (s *Store) PutCredential(c trustcore.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.Key] = c
	s.identities[c.Identity.ID] = c.Identity
}

// PutJob adds or replaces a job.
func (s *Store) PutJob(j trustcore.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// LookupIdentity implements trustcore.Directory.
func (s *Store) LookupIdentity(_ context.Context, id int64) (trustcore.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[id]
	if !ok {
		return trustcore.Identity{}, trustcore.ErrIdentityNotFound
	}
	return ident, nil
}

// LookupIdentityByEmail implements trustcore.EmailDirectory. Emails compare
// case-insensitively.
func (s *Store) LookupIdentityByEmail(_ context.Context, email string) (trustcore.Identity, error) {
	email = strings.TrimSpace(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ident := range s.identities {
		if ident.Email != "" && strings.EqualFold(ident.Email, email) {
			return ident, nil
		}
	}
	return trustcore.Identity{}, trustcore.ErrIdentityNotFound
}

// LookupCredential implements trustcore.CredentialStore.
func (s *Store) LookupCredential(_ context.Context, key string) (trustcore.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[key]
	if !ok {
		return trustcore.Credential{}, trustcore.ErrCredentialNotFound
	}
	return c, nil
}

// ConsumeQuota implements trustcore.CredentialStore.
func (s *Store) ConsumeQuota(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[key]
	if !ok {
		return false, trustcore.ErrCredentialNotFound
	}
	if c.Quota.Exhausted(c.QuotaUsed) {
		return false, nil
	}
	c.QuotaUsed++
	s.credentials[key] = c
	return true, nil
}

// LoadJob implements trustcore.JobStore.
func (s *Store) LoadJob(_ context.Context, id string) (trustcore.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return trustcore.Job{}, trustcore.ErrJobNotFound
	}
	return j, nil
}

// TransitionJobStatus implements trustcore.JobStore.
func (s *Store) TransitionJobStatus(_ context.Context, id string, from, to trustcore.JobStatus) (bool, error) {
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
