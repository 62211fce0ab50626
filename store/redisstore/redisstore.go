// Package redisstore implements the trustcore store interfaces on Redis
// hashes. Quota consumption and job transitions run as Lua scripts so the
// compare and the write happen in one round trip.
//
// Layout, with the default "tc:" prefix:
//
//	tc:identity:<id>          hash  email name role
//	tc:identity:email:<email> string identity id (lowercased email)
//	tc:cred:<key>             hash  identity_id quota_used quota_limit
//	tc:job:<id>               hash  status target organization title ...
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/trustcore"
)

const defaultPrefix = "tc:"

// consumeQuotaLua increments quota_used while quota_limit is 0 (unlimited)
// or quota_used is below it. Returns -1 for a missing credential, 0 when the
// quota is exhausted, 1 on success.
var consumeQuotaLua = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'quota_used', 'quota_limit')
if not f[1] then
  return -1
end
local limit = tonumber(f[2] or '0')
if limit > 0 and tonumber(f[1]) >= limit then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'quota_used', 1)
return 1
`)

// transitionLua sets status to ARGV[2] only if it is currently ARGV[1].
var transitionLua = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
return 1
`)

// Option customizes a Store.
type Option func(*Store)

// WithPrefix replaces the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// Store implements trustcore.Directory, trustcore.EmailDirectory,
// trustcore.CredentialStore and trustcore.JobStore.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New returns a Store on rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) identityKey(id int64) string {
	return s.prefix + "identity:" + strconv.FormatInt(id, 10)
}

func (s *Store) emailKey(email string) string {
	return s.prefix + "identity:email:" + strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) credentialKey(key string) string {
	return s.prefix + "cred:" + key
}

func (s *Store) jobKey(id string) string {
	return s.prefix + "job:" + id
}

// PutIdentity writes id and its email index.
func (s *Store) PutIdentity(ctx context.Context, id trustcore.Identity) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.putIdentity(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: put identity: %w", err)
	}
	return nil
}

func (s *Store) putIdentity(ctx context.Context, pipe redis.Pipeliner, id trustcore.Identity) {
	pipe.HSet(ctx, s.identityKey(id.ID), map[string]any{
		"email": id.Email,
		"name":  id.Name,
		"role":  id.Role,
	})
	if id.Email != "" {
		pipe.Set(ctx, s.emailKey(id.Email), id.ID, 0)
	}
}

// PutCredential writes c and the identity it belongs to.
func (s *Store) PutCredential(ctx context.Context, c trustcore.Credential) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.putIdentity(ctx, pipe, c.Identity)
		pipe.HSet(ctx, s.credentialKey(c.Key), map[string]any{
			"identity_id": c.Identity.ID,
			"quota_used":  c.QuotaUsed,
			"quota_limit": c.Quota.StoredLimit(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: put credential: %w", err)
	}
	return nil
}

// PutJob writes j.
func (s *Store) PutJob(ctx context.Context, j trustcore.Job) error {
	err := s.rdb.HSet(ctx, s.jobKey(j.ID), map[string]any{
		"status":         string(j.Status),
		"target":         j.TargetAddress,
		"organization":   j.OrganizationAddress,
		"title":          j.Title,
		"description":    j.Description,
		"reporter_name":  j.Reporter.Name,
		"reporter_email": j.Reporter.Email,
		"reporter_phone": j.Reporter.Phone,
	}).Err()
	if err != nil {
		return fmt.Errorf("redisstore: put job: %w", err)
	}
	return nil
}

// LookupIdentity implements trustcore.Directory.
func (s *Store) LookupIdentity(ctx context.Context, id int64) (trustcore.Identity, error) {
	fields, err := s.rdb.HGetAll(ctx, s.identityKey(id)).Result()
	if err != nil {
		return trustcore.Identity{}, fmt.Errorf("redisstore: lookup identity: %w", err)
	}
	if len(fields) == 0 {
		return trustcore.Identity{}, trustcore.ErrIdentityNotFound
	}
	return trustcore.Identity{
		ID:    id,
		Email: fields["email"],
		Name:  fields["name"],
		Role:  fields["role"],
	}, nil
}

// LookupIdentityByEmail implements trustcore.EmailDirectory.
func (s *Store) LookupIdentityByEmail(ctx context.Context, email string) (trustcore.Identity, error) {
	if strings.TrimSpace(email) == "" {
		return trustcore.Identity{}, trustcore.ErrIdentityNotFound
	}
	id, err := s.rdb.Get(ctx, s.emailKey(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return trustcore.Identity{}, trustcore.ErrIdentityNotFound
	}
	if err != nil {
		return trustcore.Identity{}, fmt.Errorf("redisstore: lookup email: %w", err)
	}
	return s.LookupIdentity(ctx, id)
}

// LookupCredential implements trustcore.CredentialStore.
func (s *Store) LookupCredential(ctx context.Context, key string) (trustcore.Credential, error) {
	fields, err := s.rdb.HGetAll(ctx, s.credentialKey(key)).Result()
	if err != nil {
		return trustcore.Credential{}, fmt.Errorf("redisstore: lookup credential: %w", err)
	}
	if len(fields) == 0 {
		return trustcore.Credential{}, trustcore.ErrCredentialNotFound
	}

	identityID, err := strconv.ParseInt(fields["identity_id"], 10, 64)
	if err != nil {
		return trustcore.Credential{}, fmt.Errorf("redisstore: corrupt credential identity_id: %w", err)
	}
	used, err := strconv.ParseInt(fields["quota_used"], 10, 64)
	if err != nil {
		return trustcore.Credential{}, fmt.Errorf("redisstore: corrupt credential quota_used: %w", err)
	}
	limit, err := strconv.ParseInt(fields["quota_limit"], 10, 64)
	if err != nil {
		return trustcore.Credential{}, fmt.Errorf("redisstore: corrupt credential quota_limit: %w", err)
	}

	ident, err := s.LookupIdentity(ctx, identityID)
	if errors.Is(err, trustcore.ErrIdentityNotFound) {
		ident = trustcore.Identity{ID: identityID}
	} else if err != nil {
		return trustcore.Credential{}, err
	}
	return trustcore.Credential{
		Identity:  ident,
		Key:       key,
		QuotaUsed: used,
		Quota:     trustcore.QuotaFromLimit(limit),
	}, nil
}

// ConsumeQuota implements trustcore.CredentialStore.
func (s *Store) ConsumeQuota(ctx context.Context, key string) (bool, error) {
	res, err := consumeQuotaLua.Run(ctx, s.rdb, []string{s.credentialKey(key)}).Int64()
	if err != nil {
		return false, fmt.Errorf("redisstore: consume quota: %w", err)
	}
	switch res {
	case -1:
		return false, trustcore.ErrCredentialNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// LoadJob implements trustcore.JobStore.
func (s *Store) LoadJob(ctx context.Context, id string) (trustcore.Job, error) {
	f, err := s.rdb.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return trustcore.Job{}, fmt.Errorf("redisstore: load job: %w", err)
	}
	if len(f) == 0 {
		return trustcore.Job{}, trustcore.ErrJobNotFound
	}
	return trustcore.Job{
		ID:                  id,
		Status:              trustcore.JobStatus(f["status"]),
		TargetAddress:       f["target"],
		OrganizationAddress: f["organization"],
		Title:               f["title"],
		Description:         f["description"],
		Reporter: trustcore.Contact{
			Name:  f["reporter_name"],
			Email: f["reporter_email"],
			Phone: f["reporter_phone"],
		},
	}, nil
}

// TransitionJobStatus implements trustcore.JobStore.
func (s *Store) TransitionJobStatus(ctx context.Context, id string, from, to trustcore.JobStatus) (bool, error) {
	res, err := transitionLua.Run(ctx, s.rdb, []string{s.jobKey(id)}, string(from), string(to)).Int64()
	if err != nil {
		return false, fmt.Errorf("redisstore: transition job: %w", err)
	}
	return res == 1, nil
}
