// Package jwt verifies federated ID tokens for trustcore sign-in.
//
// [Verifier] implements trustcore.TokenVerifier. Keys are selected by the
// token's kid, first from the static key map and then from an optional
// [KeySource]. A kid that cannot be resolved is reported as
// trustcore.ErrVerifierUnavailable so sign-in can fall back to the asserted
// subject; a bad signature, wrong issuer or audience, or an expired token is
// an ordinary error.
//
// [Signer] issues tokens the verifier accepts, for local identity providers
// and load tests.
package jwt
