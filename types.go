package trustcore

import (
	"context"
	"strconv"
)

// Identity is a resolved principal from the directory.
type Identity struct {
	ID    int64
	Email string
	Name  string
	Role  string
}

// Subject returns the decimal form of ID used in counter keys and logs.
func (i Identity) Subject() string {
	return strconv.FormatInt(i.ID, 10)
}

// Quota is a credential's usage allowance: either unlimited or a fixed
// number of uses.
type Quota struct {
	limit     int64
	unlimited bool
}

// Unlimited returns a quota that never runs out.
func Unlimited() Quota {
	return Quota{unlimited: true}
}

// Limited returns a quota of n uses. n <= 0 permits nothing.
func Limited(n int64) Quota {
	if n < 0 {
		n = 0
	}
	return Quota{limit: n}
}

// QuotaFromLimit converts the stored quota_limit column, where 0 means
// unlimited.
func QuotaFromLimit(limit int64) Quota {
	if limit == 0 {
		return Unlimited()
	}
	return Limited(limit)
}

// IsUnlimited reports whether q never runs out.
func (q Quota) IsUnlimited() bool {
	return q.unlimited
}

// Limit returns the number of permitted uses and false for unlimited quotas.
func (q Quota) Limit() (int64, bool) {
	if q.unlimited {
		return 0, false
	}
	return q.limit, true
}

// StoredLimit is the inverse of QuotaFromLimit.
func (q Quota) StoredLimit() int64 {
	if q.unlimited {
		return 0
	}
	return q.limit
}

// Exhausted reports whether used leaves nothing under q.
func (q Quota) Exhausted(used int64) bool {
	return !q.unlimited && used >= q.limit
}

func (q Quota) String() string {
	if q.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(q.limit, 10)
}

// Credential is an API key and its metered usage.
type Credential struct {
	Identity  Identity
	Key       string
	QuotaUsed int64
	Quota     Quota
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobFiled   JobStatus = "filed"
	JobFailed  JobStatus = "failed"
)

// Contact is the reporter's contact snapshot carried on a Job.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Job is a complaint awaiting dispatch, with its destination addresses
// denormalized from the related entities.
type Job struct {
	ID                  string
	Status              JobStatus
	TargetAddress       string
	OrganizationAddress string
	Title               string
	Description         string
	Reporter            Contact
}

// Notification is the message handed to the Notifier.
type Notification struct {
	JobID          string
	To             string
	ReplyTo        string
	Subject        string
	Body           string
	IdempotencyKey string
}

// Assertion is a sign-in request: a locally asserted subject and an
// optional federated ID token.
type Assertion struct {
	SubjectID int64
	IDToken   string
}

// FederatedClaims are the verified claims of an ID token.
type FederatedClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// Directory resolves identities. Unknown subjects return ErrIdentityNotFound.
type Directory interface {
	LookupIdentity(ctx context.Context, id int64) (Identity, error)
}

// EmailDirectory is implemented by directories that can resolve verified
// federated emails.
type EmailDirectory interface {
	LookupIdentityByEmail(ctx context.Context, email string) (Identity, error)
}

// CredentialStore holds API keys. LookupCredential returns
// ErrCredentialNotFound for unknown keys. ConsumeQuota increments QuotaUsed
// by one in a single atomic step guarded by the quota (unlimited, or
// QuotaUsed below the limit), reporting false when the quota is exhausted
// and ErrCredentialNotFound when the key is gone.
type CredentialStore interface {
	LookupCredential(ctx context.Context, key string) (Credential, error)
	ConsumeQuota(ctx context.Context, key string) (bool, error)
}

// JobStore holds fulfillment jobs. TransitionJobStatus changes the status
// only if it still equals from, reporting whether a row changed.
type JobStore interface {
	LoadJob(ctx context.Context, id string) (Job, error)
	TransitionJobStatus(ctx context.Context, id string, from, to JobStatus) (bool, error)
}

// Notifier delivers fulfillment notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// PacedNotifier is a Notifier that throttles delivery. Fulfill calls Admit
// before marking a job filed, so backpressure leaves the job pending, and
// then delivers with SendAdmitted, which must not wait for pacing again.
type PacedNotifier interface {
	Notifier
	Admit(ctx context.Context) error
	SendAdmitted(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// TokenVerifier verifies federated ID tokens. It returns
// ErrVerifierUnavailable when it cannot decide, and any other error for a
// token that is invalid.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (FederatedClaims, error)
}
