package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

const (
	separator = "."
	// SignatureHexLen is the length of the hex-encoded HMAC-SHA256 digest.
	SignatureHexLen = sha256.Size * 2
)

var (
	// ErrConfigurationMissing is returned by Sign when no signing secret is configured.
	ErrConfigurationMissing = errors.New("token signing secret not configured")
	// ErrInvalidSubject is returned by Sign for non-positive subject ids.
	ErrInvalidSubject = errors.New("token subject must be a positive integer")
)

// Codec signs and verifies session tokens with a single HMAC secret.
//
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec for secret. An empty secret is accepted so that
// construction never fails; Sign reports ErrConfigurationMissing and Verify
// rejects everything until a secret is supplied.
func NewCodec(secret []byte) *Codec {
	c := &Codec{}
	if len(secret) > 0 {
		c.secret = make([]byte, len(secret))
		copy(c.secret, secret)
	}
	return c
}

// Configured reports whether the codec holds a signing secret.
func (c *Codec) Configured() bool {
	return c != nil && len(c.secret) > 0
}

// Sign returns "<subjectID>.<hex(HMAC-SHA256(secret, decimal subjectID))>".
func (c *Codec) Sign(subjectID int64) (string, error) {
	if !c.Configured() {
		return "", ErrConfigurationMissing
	}
	if subjectID <= 0 {
		return "", ErrInvalidSubject
	}

	subject := strconv.FormatInt(subjectID, 10)
	sig := c.mac(subject)

	var b strings.Builder
	b.Grow(len(subject) + 1 + SignatureHexLen)
	b.WriteString(subject)
	b.WriteString(separator)
	b.WriteString(hex.EncodeToString(sig))
	return b.String(), nil
}

// Verify returns the subject id carried by raw when its signature matches.
// Tokens that do not split into exactly two parts, whose subject is not a
// positive base-10 integer, or whose signature is not the exact lowercase
// hex digest are rejected. The digest comparison is constant-time.
func (c *Codec) Verify(raw string) (int64, bool) {
	if !c.Configured() || raw == "" {
		return 0, false
	}

	subject, sigHex, ok := strings.Cut(raw, separator)
	if !ok || strings.Contains(sigHex, separator) {
		return 0, false
	}

	subjectID, ok := parseSubject(subject)
	if !ok {
		return 0, false
	}

	if len(sigHex) != SignatureHexLen || !isLowerHex(sigHex) {
		return 0, false
	}
	provided, err := hex.DecodeString(sigHex)
	if err != nil {
		return 0, false
	}

	if !hmac.Equal(provided, c.mac(subject)) {
		return 0, false
	}
	return subjectID, true
}

func (c *Codec) mac(subject string) []byte {
	m := hmac.New(sha256.New, c.secret)
	_, _ = m.Write([]byte(subject))
	return m.Sum(nil)
}

// parseSubject accepts canonical positive decimal integers only, so that
// "042" or "+42" cannot alias the signature of "42".
func parseSubject(s string) (int64, bool) {
	if s == "" || len(s) > 19 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	if s[0] == '0' {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
