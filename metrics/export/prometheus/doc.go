// Package prometheus exposes trustcore engine metrics through
// prometheus/client_golang.
//
// [Collector] turns each scrape into const metrics read from
// Engine.MetricsSnapshot: trustcore_*_total counters, the
// trustcore_authorize_latency_seconds and trustcore_fulfill_latency_seconds
// histograms, and trustcore_audit_dropped_total. [Handler] mounts the
// collector on a private registry.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the
//     Collector themselves or mount Handler.
//   - Mutate engine state.
package prometheus
