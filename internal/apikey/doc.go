// Package apikey implements the API key quota gate without root package
// dependencies.
//
// The root Engine builds a [Deps] from its credential store and calls
// [RunAuthorize]. The lookup rejects unknown keys and exhausted quotas early;
// the charge itself is a limit-guarded increment at the store, so the check
// and the increment are one atomic step and concurrent callers never retry.
//
// # What this package must NOT do
//
//   - Increment usage for a rejected request.
//   - Write HTTP responses or pick status codes.
//   - Import trustcore.
package apikey
