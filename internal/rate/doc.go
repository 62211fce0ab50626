// Package rate provides the two interchangeable fixed-window counters used for
// request throttling.
//
// # Counters
//
//   - [LocalCounter]: in-process, sharded map of {count, resetAt}. Denies
//     without mutating once the window budget is spent.
//   - [Distributed]: shared store behind a [Backend]: INCR, then a
//     best-effort background EXPIRE on the first hit. Count-then-deny; the
//     increment is never rolled back.
//
// Both satisfy [Limiter].
//
// # Window semantics
//
// Windows are fixed per key and start at the key's first observation. Bursts
// of up to 2x the limit are possible across a window edge.
//
// # What this package must NOT do
//
//   - Decide fail-open vs fail-closed: backend failures surface as
//     [ErrUpstreamUnavailable] and the caller chooses.
//   - Map paths or resources to policies (that lives in internal/limiters).
package rate
