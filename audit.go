package authcore

import (
	"io"

	"github.com/careline/authcore/internal/audit"
)

// Audit event types emitted by the engine. Consumers switch on these rather
// than parsing the error text.
const (
	AuditLoginSuccess      = "login_success"
	AuditLoginFailure      = "login_failure"
	AuditAccountLocked     = "account_locked"
	AuditRefreshSuccess    = "refresh_success"
	AuditRefreshFailure    = "refresh_failure"
	AuditRefreshReuse      = "refresh_reuse_detected"
	AuditLogout            = "logout"
	AuditLogoutAll         = "logout_all"
	AuditSessionTerminated = "session_terminated"
	AuditResetRequested    = "password_reset_requested"
	AuditResetThrottled    = "password_reset_throttled"
	AuditResetCompleted    = "password_reset_completed"
	AuditResetFailed       = "password_reset_failed"
	AuditVerifyRequested   = "email_verification_requested"
	AuditVerifyCompleted   = "email_verification_completed"
	AuditVerifyFailed      = "email_verification_failed"
	AuditPasswordChanged   = "password_changed"
)

// AuditEvent is the record delivered to the configured sink.
type AuditEvent = audit.Event

// AuditSink receives emitted audit events. Emit must not block for long;
// the dispatcher serializes delivery on a single goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events for a caller-run consumer loop.
type ChannelSink = audit.ChannelSink

// NewChannelSink creates a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink = audit.JSONWriterSink

// NewJSONWriterSink creates a JSONWriterSink over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
