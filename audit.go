package trustcore

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/trustcore/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc = internalaudit.SinkFunc

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink is an [AuditSink] that writes events to a [slog.Logger].
type LogSink = internalaudit.LogSink

// Audit event types.
const (
	AuditSessionIssued      = internalaudit.EventSessionIssued
	AuditSessionRejected    = internalaudit.EventSessionRejected
	AuditAPIKeyAccepted     = internalaudit.EventAPIKeyAccepted
	AuditAPIKeyDenied       = internalaudit.EventAPIKeyDenied
	AuditEdgeThrottled      = internalaudit.EventEdgeThrottled
	AuditResourceThrottled  = internalaudit.EventResourceThrottled
	AuditFulfillmentFiled   = internalaudit.EventFulfillmentFiled
	AuditFulfillmentSkipped = internalaudit.EventFulfillmentSkipped
	AuditNotificationFailed = internalaudit.EventNotificationFailed
)

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink creates a [LogSink]. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}
