package pgstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/trustcore"
)

var (
	_ trustcore.Directory       = (*Store)(nil)
	_ trustcore.EmailDirectory  = (*Store)(nil)
	_ trustcore.CredentialStore = (*Store)(nil)
	_ trustcore.JobStore        = (*Store)(nil)
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *int:
			*p = r.values[i].(int)
		case *string:
			*p = r.values[i].(string)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []execCall
	execFn  func(sql string, args ...any) (pgconn.CommandTag, error)
	queryFn func(sql string, args ...any) pgx.Row
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execFn == nil {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return f.execFn(sql, args...)
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if f.queryFn == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return f.queryFn(sql, args...)
}

func TestLookupCredential(t *testing.T) {
	db := &fakeDB{queryFn: func(sql string, args ...any) pgx.Row {
		if args[0] != "k-1" {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{values: []any{int64(42), "ana@example.com", "Ana", "member", int64(3), int64(0)}}
	}}
	s := New(db)

	c, err := s.LookupCredential(context.Background(), "k-1")
	if err != nil {
		t.Fatalf("LookupCredential: %v", err)
	}
	if c.Identity.ID != 42 || c.QuotaUsed != 3 || !c.Quota.IsUnlimited() || c.Key != "k-1" {
		t.Fatalf("unexpected credential %+v", c)
	}
	if _, err := s.LookupCredential(context.Background(), "other"); !errors.Is(err, trustcore.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestLookupCredentialBackendError(t *testing.T) {
	boom := errors.New("connection reset")
	s := New(&fakeDB{queryFn: func(string, ...any) pgx.Row { return fakeRow{err: boom} }})
	_, err := s.LookupCredential(context.Background(), "k")
	if !errors.Is(err, boom) || errors.Is(err, trustcore.ErrCredentialNotFound) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestConsumeQuota(t *testing.T) {
	tests := map[string]struct {
		tag     string
		exists  bool
		wantOK  bool
		wantErr error
	}{
		"applied":   {tag: "UPDATE 1", exists: true, wantOK: true},
		"exhausted": {tag: "UPDATE 0", exists: true},
		"deleted":   {tag: "UPDATE 0", wantErr: trustcore.ErrCredentialNotFound},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			db := &fakeDB{
				execFn: func(string, ...any) (pgconn.CommandTag, error) {
					return pgconn.NewCommandTag(tc.tag), nil
				},
				queryFn: func(string, ...any) pgx.Row {
					if !tc.exists {
						return fakeRow{err: pgx.ErrNoRows}
					}
					return fakeRow{values: []any{1}}
				},
			}
			ok, err := New(db).ConsumeQuota(context.Background(), "k")
			if ok != tc.wantOK || !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v %v, want %v %v", ok, err, tc.wantOK, tc.wantErr)
			}
			call := db.execs[0]
			if len(call.args) != 1 || !strings.Contains(call.sql, "quota_used < quota_limit") {
				t.Fatalf("update must be guarded by the stored limit: %q %v", call.sql, call.args)
			}
		})
	}
}

func TestTransitionJobStatus(t *testing.T) {
	db := &fakeDB{execFn: func(sql string, args ...any) (pgconn.CommandTag, error) {
		if args[1] == "pending" {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	s := New(db)

	ok, err := s.TransitionJobStatus(context.Background(), "j1", trustcore.JobPending, trustcore.JobFiled)
	if err != nil || !ok {
		t.Fatalf("transition: %v %v", ok, err)
	}
	if !strings.Contains(db.execs[0].sql, "AND status = $2") {
		t.Fatal("transition must be conditional on the current status")
	}
	if ok, _ := s.TransitionJobStatus(context.Background(), "j1", trustcore.JobFiled, trustcore.JobFailed); ok {
		t.Fatal("zero rows affected must report false")
	}

	db.execFn = func(string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("timeout")
	}
	if _, err := s.TransitionJobStatus(context.Background(), "j1", trustcore.JobPending, trustcore.JobFiled); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestLoadJob(t *testing.T) {
	db := &fakeDB{queryFn: func(string, ...any) pgx.Row {
		return fakeRow{values: []any{"j1", "pending", "roads@city.example", "", "Pothole", "Deep", "Ana", "ana@example.com", ""}}
	}}
	j, err := New(db).LoadJob(context.Background(), "j1")
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if j.Status != trustcore.JobPending || j.Reporter.Email != "ana@example.com" || j.TargetAddress != "roads@city.example" {
		t.Fatalf("unexpected job %+v", j)
	}
	if _, err := New(&fakeDB{}).LoadJob(context.Background(), "missing"); !errors.Is(err, trustcore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestIdentityLookups(t *testing.T) {
	db := &fakeDB{queryFn: func(string, ...any) pgx.Row {
		return fakeRow{values: []any{int64(7), "ops@example.com", "Ops", "admin"}}
	}}
	s := New(db)
	if id, err := s.LookupIdentity(context.Background(), 7); err != nil || id.Role != "admin" {
		t.Fatalf("LookupIdentity: %+v %v", id, err)
	}
	if id, err := s.LookupIdentityByEmail(context.Background(), "OPS@example.com"); err != nil || id.ID != 7 {
		t.Fatalf("LookupIdentityByEmail: %+v %v", id, err)
	}
	if _, err := s.LookupIdentityByEmail(context.Background(), "  "); !errors.Is(err, trustcore.ErrIdentityNotFound) {
		t.Fatalf("blank email must not query, got %v", err)
	}
	if _, err := New(&fakeDB{}).LookupIdentity(context.Background(), 1); !errors.Is(err, trustcore.ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestPutCredentialWritesIdentityFirst(t *testing.T) {
	db := &fakeDB{}
	err := New(db).PutCredential(context.Background(), trustcore.Credential{
		Identity: trustcore.Identity{ID: 3},
		Key:      "k",
		Quota:    trustcore.Limited(9),
	})
	if err != nil {
		t.Fatalf("PutCredential: %v", err)
	}
	if len(db.execs) != 2 || !strings.Contains(db.execs[0].sql, "identities") {
		t.Fatalf("unexpected statements %+v", db.execs)
	}
	if db.execs[1].args[3] != int64(9) {
		t.Fatalf("quota limit arg = %v", db.execs[1].args[3])
	}
}
