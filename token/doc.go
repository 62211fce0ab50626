// Package token signs and verifies compact session tokens of the form
// "<subjectId>.<hex HMAC-SHA256>".
//
// Tokens carry no expiry claim. Lifetime is owned by the transport (cookie
// Max-Age); revocation happens by rotating the signing secret or by the
// subject no longer resolving in the directory.
//
// # What this package must NOT do
//
//   - Perform directory lookups or any other I/O.
//   - Return errors from Verify: malformed or forged input is "no subject".
package token
