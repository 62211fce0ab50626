// Package internal holds the pure building blocks behind the trustcore
// Engine. Each sub-package takes its collaborators as function-valued Deps
// and injected sentinels, so none of them import trustcore.
//
// # Sub-packages
//
//   - apikey: quota-charging API key gate with bounded compare-and-swap
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - confloader: koanf-backed settings loader (file, env, overrides)
//   - fulfillment: single-dispatch job fulfillment
//   - limiters: edge and named-resource limiters over internal/rate
//   - logging: slog construction and secret redaction
//   - rate: local sliding counter and distributed counter backends
//
// # What this package must NOT do
//
//   - Export types that appear in the public trustcore API.
//   - Be imported by any package outside the trustcore module.
package internal
