package authflow

import (
	"context"
	"io"

	"github.com/MrEthical07/authflow/gateway"
	internalaudit "github.com/MrEthical07/authflow/internal/audit"
)

// AuditEvent is a structured audit record emitted by the client.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the client's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Audit event types.
const (
	AuditLoginSuccess          = "login_success"
	AuditLoginFailure          = "login_failure"
	AuditRateLimited           = "rate_limited"
	AuditRegister              = "register"
	AuditOTPVerify             = "otp_verify"
	AuditRegistrationComplete  = "registration_complete"
	AuditPasswordResetRequest  = "password_reset_request"
	AuditPasswordResetComplete = "password_reset_complete"
	AuditSessionRefresh        = "session_refresh"
	AuditSessionRestore        = "session_restore"
	AuditLogout                = "logout"
	AuditGuardRejected         = "guard_rejected"
	AuditOperationTimeout      = "operation_timeout"
)

func (c *Client) emitAudit(ctx context.Context, eventType string, success bool, subject string, err error, meta func() map[string]string) {
	if c.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		Subject:   subject,
		Success:   success,
	}
	if id, ok := gateway.RequestIDFromContext(ctx); ok {
		event.RequestID = id
	}
	if err != nil {
		event.Error = err.Error()
	}
	if meta != nil {
		event.Metadata = meta()
	}
	c.audit.Emit(ctx, event)
}

// AuditDropped returns how many audit events were discarded because the buffer was
// full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}
