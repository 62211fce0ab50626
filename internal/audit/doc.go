// Package audit implements async event dispatching for trust decisions.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: ordered batch relay. Under drop-if-full it sheds throttle and
//     denial events but never [Retained] ones (a job marked filed, a failed send).
//   - [Event]: structured record of a session, API key, throttle or fulfillment decision.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import trustcore or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
