// Package limiters maps request shapes onto the internal/rate counters.
//
// # Limiters
//
//   - [EdgeLimiter]: per-address, per-path throttle for a static set of
//     protected path suffixes, on the process-local counter.
//   - [ResourceLimiter]: per-subject budget for named resources, on whichever
//     [rate.Limiter] it is given (the distributed counter in production).
//
// EdgeLimiter is nil-safe: a nil limiter protects nothing.
//
// # Architecture boundaries
//
// Each limiter owns its own key namespace ("edge:", "res:"). Policy
// thresholds come from config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import trustcore or any sibling internal package except internal/rate.
//   - Write HTTP responses. Middleware turns decisions into 429s.
package limiters
