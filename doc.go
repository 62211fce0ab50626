// Package trustcore is the request-trust and throttling core of a civic
// reporting service: signed session tokens, API key quota metering, a
// two-tier rate limiter, and an at-most-once notification dispatcher.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// trustcore is the public surface. It exposes [Engine], [Builder], [Config], the
// collaborator interfaces ([Directory], [CredentialStore], [JobStore], [Notifier],
// [TokenVerifier]) and value types. Counting, gating and dispatch logic lives under
// internal/ and is never exported. Route handlers, the user directory itself and
// database schemas belong to the embedding application.
//
// # What this package must NOT do
//
//   - Expose Redis clients, counter stores, or token encoding details in its public API.
//   - Turn upstream failures into implicit allows or denies. They surface as
//     [ErrUpstreamUnavailable] and the caller picks fail-open or fail-closed.
//   - Send a fulfillment notification before its status change is persisted.
//   - Import any sub-package that re-imports trustcore (no import cycles).
//
// # Performance contract
//
// ResolveSession costs one HMAC and one directory lookup. The edge throttle is one
// shard-local map operation and never blocks on I/O. Authorize costs two store round
// trips in the uncontended case.
package trustcore
