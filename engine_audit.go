package goGate

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventSessionCreated     = "session_created"
	auditEventSessionRevoked     = "session_revoked"
	auditEventSessionRevokeAll   = "session_revoke_all"
	auditEventDeviceAnomaly      = "device_anomaly"
	auditEventAuthzDenied        = "authz_denied"
	auditEventAuthzOverride      = "authz_override"
	auditEventRateLimitTriggered = "rate_limit_triggered"
	auditEventRateLimitDegraded  = "rate_limit_degraded"
	auditEventCSRFRejected       = "csrf_rejected"
)

// auditErrorCode reduces err to a code that is safe to persist. Raw backend
// messages never reach the audit trail.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unavailable"
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, sessionID string, success bool, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	e.audit.Emit(ctx, AuditEvent{
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     auditErrorCode(err),
		Metadata:  metadata,
	})
}
