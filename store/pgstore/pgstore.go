// Package pgstore implements the trustcore store interfaces on PostgreSQL
// through pgx. Quota consumption and job transitions are single UPDATE
// statements guarded by the previously read value, so RowsAffected decides
// the race.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/trustcore"
)

// Schema creates the tables the store reads. quota_limit 0 means unlimited.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id    BIGINT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	name  TEXT NOT NULL DEFAULT '',
	role  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS identities_email_idx ON identities (lower(email));

CREATE TABLE IF NOT EXISTS api_credentials (
	api_key     TEXT PRIMARY KEY,
	identity_id BIGINT NOT NULL REFERENCES identities (id),
	quota_used  BIGINT NOT NULL DEFAULT 0,
	quota_limit BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	status               TEXT NOT NULL,
	target_address       TEXT NOT NULL DEFAULT '',
	organization_address TEXT NOT NULL DEFAULT '',
	title                TEXT NOT NULL DEFAULT '',
	description          TEXT NOT NULL DEFAULT '',
	reporter_name        TEXT NOT NULL DEFAULT '',
	reporter_email       TEXT NOT NULL DEFAULT '',
	reporter_phone       TEXT NOT NULL DEFAULT ''
);
`

const (
	selectIdentity = `SELECT id, email, name, role FROM identities WHERE id = $1`

	selectIdentityByEmail = `SELECT id, email, name, role FROM identities
WHERE lower(email) = lower($1) ORDER BY id LIMIT 1`

	selectCredential = `SELECT i.id, i.email, i.name, i.role, c.quota_used, c.quota_limit
FROM api_credentials c JOIN identities i ON i.id = c.identity_id
WHERE c.api_key = $1`

	consumeQuota = `UPDATE api_credentials SET quota_used = quota_used + 1
WHERE api_key = $1 AND (quota_limit = 0 OR quota_used < quota_limit)`

	credentialExists = `SELECT 1 FROM api_credentials WHERE api_key = $1`

	selectJob = `SELECT id, status, target_address, organization_address, title, description,
reporter_name, reporter_email, reporter_phone FROM jobs WHERE id = $1`

	transitionJob = `UPDATE jobs SET status = $3 WHERE id = $1 AND status = $2`

	upsertIdentity = `INSERT INTO identities (id, email, name, role) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, role = EXCLUDED.role`

	upsertCredential = `INSERT INTO api_credentials (api_key, identity_id, quota_used, quota_limit)
VALUES ($1, $2, $3, $4)
ON CONFLICT (api_key) DO UPDATE SET identity_id = EXCLUDED.identity_id,
quota_used = EXCLUDED.quota_used, quota_limit = EXCLUDED.quota_limit`

	upsertJob = `INSERT INTO jobs (id, status, target_address, organization_address, title, description,
reporter_name, reporter_email, reporter_phone) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, target_address = EXCLUDED.target_address,
organization_address = EXCLUDED.organization_address, title = EXCLUDED.title,
description = EXCLUDED.description, reporter_name = EXCLUDED.reporter_name,
reporter_email = EXCLUDED.reporter_email, reporter_phone = EXCLUDED.reporter_phone`
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements trustcore.Directory, trustcore.EmailDirectory,
// trustcore.CredentialStore and trustcore.JobStore.
type Store struct {
	db DB
}

// New returns a Store on db.
func New(db DB) *Store {
	return &Store{db: db}
}

// Open connects a pool to dsn and pings it.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

// PutIdentity inserts or replaces an identity.
func (s *Store) PutIdentity(ctx context.Context, id trustcore.Identity) error {
	if _, err := s.db.Exec(ctx, upsertIdentity, id.ID, id.Email, id.Name, id.Role); err != nil {
		return fmt.Errorf("pgstore: put identity: %w", err)
	}
	return nil
}

// PutCredential inserts or replaces a credential and its identity.
func (s *Store) PutCredential(ctx context.Context, c trustcore.Credential) error {
	if err := s.PutIdentity(ctx, c.Identity); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertCredential, c.Key, c.Identity.ID, c.QuotaUsed, c.Quota.StoredLimit()); err != nil {
		return fmt.Errorf("pgstore: put credential: %w", err)
	}
	return nil
}

// PutJob inserts or replaces a job.
func (s *Store) PutJob(ctx context.Context, j trustcore.Job) error {
	_, err := s.db.Exec(ctx, upsertJob,
		j.ID, string(j.Status), j.TargetAddress, j.OrganizationAddress, j.Title, j.Description,
		j.Reporter.Name, j.Reporter.Email, j.Reporter.Phone)
	if err != nil {
		return fmt.Errorf("pgstore: put job: %w", err)
	}
	return nil
}

// LookupIdentity implements trustcore.Directory.
func (s *Store) LookupIdentity(ctx context.Context, id int64) (trustcore.Identity, error) {
	return s.scanIdentity(s.db.QueryRow(ctx, selectIdentity, id))
}

// LookupIdentityByEmail implements trustcore.EmailDirectory.
func (s *Store) LookupIdentityByEmail(ctx context.Context, email string) (trustcore.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return trustcore.Identity{}, trustcore.ErrIdentityNotFound
	}
	return s.scanIdentity(s.db.QueryRow(ctx, selectIdentityByEmail, email))
}

func (s *Store) scanIdentity(row pgx.Row) (trustcore.Identity, error) {
	var ident trustcore.Identity
	err := row.Scan(&ident.ID, &ident.Email, &ident.Name, &ident.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return trustcore.Identity{}, trustcore.ErrIdentityNotFound
	}
	if err != nil {
		return trustcore.Identity{}, fmt.Errorf("pgstore: lookup identity: %w", err)
	}
	return ident, nil
}

// LookupCredential implements trustcore.CredentialStore.
func (s *Store) LookupCredential(ctx context.Context, key string) (trustcore.Credential, error) {
	var (
		c     = trustcore.Credential{Key: key}
		limit int64
	)
	err := s.db.QueryRow(ctx, selectCredential, key).Scan(
		&c.Identity.ID, &c.Identity.Email, &c.Identity.Name, &c.Identity.Role, &c.QuotaUsed, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return trustcore.Credential{}, trustcore.ErrCredentialNotFound
	}
	if err != nil {
		return trustcore.Credential{}, fmt.Errorf("pgstore: lookup credential: %w", err)
	}
	c.Quota = trustcore.QuotaFromLimit(limit)
	return c, nil
}

// ConsumeQuota implements trustcore.CredentialStore. A zero-row update is
// re-checked so a deleted key reports ErrCredentialNotFound rather than an
// exhausted quota.
func (s *Store) ConsumeQuota(ctx context.Context, key string) (bool, error) {
	tag, err := s.db.Exec(ctx, consumeQuota, key)
	if err != nil {
		return false, fmt.Errorf("pgstore: consume quota: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var one int
	err = s.db.QueryRow(ctx, credentialExists, key).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, trustcore.ErrCredentialNotFound
	}
	if err != nil {
		return false, fmt.Errorf("pgstore: consume quota: %w", err)
	}
	return false, nil
}

// LoadJob implements trustcore.JobStore.
func (s *Store) LoadJob(ctx context.Context, id string) (trustcore.Job, error) {
	var (
		j      trustcore.Job
		status string
	)
	err := s.db.QueryRow(ctx, selectJob, id).Scan(
		&j.ID, &status, &j.TargetAddress, &j.OrganizationAddress, &j.Title, &j.Description,
		&j.Reporter.Name, &j.Reporter.Email, &j.Reporter.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return trustcore.Job{}, trustcore.ErrJobNotFound
	}
	if err != nil {
		return trustcore.Job{}, fmt.Errorf("pgstore: load job: %w", err)
	}
	j.Status = trustcore.JobStatus(status)
	return j, nil
}

// TransitionJobStatus implements trustcore.JobStore.
func (s *Store) TransitionJobStatus(ctx context.Context, id string, from, to trustcore.JobStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, transitionJob, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("pgstore: transition job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
