// Package middleware adapts a trustcore.Engine to net/http.
//
// # Filters
//
//   - [EdgeThrottle]: per-address throttle on protected path suffixes,
//     applied before routing.
//   - [Session] and [RequireSession]: resolve the session cookie.
//   - [RequireAPIKey]: authorize the API key header and charge its quota.
//   - [ResourceLimit]: meter a named resource per subject.
//
// Each filter attaches what it learned (client address, identity) to the
// request context for the handlers behind it.
//
// # What this package must NOT do
//
//   - Sign or verify tokens (delegates to Engine).
//   - Talk to a counter backend or store directly.
//   - Decide beyond pass or reject from the Engine result.
package middleware
