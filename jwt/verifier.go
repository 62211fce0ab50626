package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/trustcore"
)

// SigningMethod selects the algorithm of federated ID tokens.
type SigningMethod string

const (
	// MethodEd25519 verifies EdDSA tokens against Ed25519 public keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 verifies HMAC-SHA256 tokens against shared secrets.
	MethodHS256 SigningMethod = "hs256"
)

// KeySource resolves a verification key by kid at verification time, for
// example from a cached JWKS document. A returned error makes the verifier
// report trustcore.ErrVerifierUnavailable.
type KeySource func(ctx context.Context, kid string) ([]byte, error)

// Config configures a Verifier.
type Config struct {
	SigningMethod SigningMethod
	// Keys maps kid to key material: raw or PEM Ed25519 public keys, or HMAC
	// secrets for HS256.
	Keys map[string][]byte
	// KeySource is consulted for kids missing from Keys.
	KeySource    KeySource
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

// IDClaims are the claims read from a federated ID token.
type IDClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks federated ID tokens and implements trustcore.TokenVerifier.
type Verifier struct {
	config Config
	method jwt.SigningMethod
}

var errKeyUnavailable = errors.New("verification key unavailable")

// NewVerifier validates cfg and returns a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("audience is required")
	}
	if len(cfg.Keys) == 0 && cfg.KeySource == nil {
		return nil, errors.New("verifier requires Keys or a KeySource")
	}

	v := &Verifier{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		v.method = jwt.SigningMethodHS256
	case MethodEd25519:
		v.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	for kid, key := range cfg.Keys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("key map contains empty kid")
		}
		if _, err := v.verifyKey(key); err != nil {
			return nil, fmt.Errorf("invalid key for kid %q: %w", kid, err)
		}
	}
	return v, nil
}

// VerifyIDToken parses raw and returns its claims. Tokens whose key cannot
// be resolved fail with trustcore.ErrVerifierUnavailable; every other
// failure means the token is invalid.
func (v *Verifier) VerifyIDToken(ctx context.Context, raw string) (trustcore.FederatedClaims, error) {
	claims, err := v.Parse(ctx, raw)
	if err != nil {
		if errors.Is(err, errKeyUnavailable) {
			return trustcore.FederatedClaims{}, fmt.Errorf("%w: %v", trustcore.ErrVerifierUnavailable, err)
		}
		return trustcore.FederatedClaims{}, err
	}
	return trustcore.FederatedClaims{
		Subject:       claims.Subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: claims.EmailVerified,
	}, nil
}

// Parse verifies raw and returns the full claim set.
func (v *Verifier) Parse(ctx context.Context, raw string) (*IDClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(v.config.Audience),
	}
	if v.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(v.config.Leeway))
	}
	if v.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(raw, &IDClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.lookupKey(ctx, kid)
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*IDClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(time.Now().Add(v.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}
	return claims, nil
}

func (v *Verifier) lookupKey(ctx context.Context, kid string) (interface{}, error) {
	if key, ok := v.config.Keys[kid]; ok {
		return v.verifyKey(key)
	}
	if v.config.KeySource == nil {
		return nil, fmt.Errorf("%w: unknown kid %q", errKeyUnavailable, kid)
	}
	key, err := v.config.KeySource(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errKeyUnavailable, err)
	}
	return v.verifyKey(key)
}

func (v *Verifier) verifyKey(key []byte) (interface{}, error) {
	if v.config.SigningMethod == MethodHS256 {
		if len(key) == 0 {
			return nil, errors.New("empty hs256 secret")
		}
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
