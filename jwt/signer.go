package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignerConfig configures a Signer.
type SignerConfig struct {
	SigningMethod SigningMethod
	// PrivateKey is a raw or PEM Ed25519 private key, or the HS256 secret.
	PrivateKey []byte
	KeyID      string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// Signer issues ID tokens a Verifier with the matching key accepts. It
// backs local development identity providers and load tests.
type Signer struct {
	config SignerConfig
	method jwt.SigningMethod
	key    interface{}
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.KeyID == "" {
		return nil, errors.New("signer requires a KeyID")
	}

	s := &Signer{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		s.method = jwt.SigningMethodHS256
		s.key = cfg.PrivateKey
	case MethodEd25519:
		key, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		s.method = jwt.SigningMethodEdDSA
		s.key = key
	default:
		return nil, errors.New("unsupported signing method")
	}
	return s, nil
}

// Issue signs an ID token for subject.
func (s *Signer) Issue(subject, email string, emailVerified bool) (string, error) {
	now := time.Now()
	claims := IDClaims{
		Email:         email,
		EmailVerified: emailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	token := jwt.NewWithClaims(s.method, claims)
	token.Header["kid"] = s.config.KeyID
	return token.SignedString(s.key)
}
