package facegate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventAuthSuccess        = "auth_success"
	auditEventAuthFailure        = "auth_failure"
	auditEventAuthLockedOut      = "auth_locked_out"
	auditEventAuthCancelled      = "auth_cancelled"
	auditEventEnrollSuccess      = "enroll_success"
	auditEventEnrollRejected     = "enroll_rejected"
	auditEventEnrollRevoked      = "enrollment_revoked"
	auditEventIdentityRegistered = "identity_registered"
	auditEventIdentityDeleted    = "identity_deleted"
	auditEventAttemptRecorded    = "attempt_recorded"
)

// AuditErrorCode is the opaque error label stamped on audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrIdentityNotFound  AuditErrorCode = "identity_not_found"
	auditErrNotEnrolled       AuditErrorCode = "not_enrolled"
	auditErrEncodingRejected  AuditErrorCode = "encoding_rejected"
	auditErrBiometricMismatch AuditErrorCode = "biometric_mismatch"
	auditErrLockedOut         AuditErrorCode = "locked_out"
	auditErrCancelled         AuditErrorCode = "cancelled"
	auditErrDuplicate         AuditErrorCode = "duplicate"
	auditErrRoleInvalid       AuditErrorCode = "role_invalid"
	auditErrGrantInvalid      AuditErrorCode = "grant_invalid"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Identity:  identity,
		Origin:    originFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityNotFound
	case errors.Is(err, ErrNotEnrolled):
		return auditErrNotEnrolled
	case errors.Is(err, ErrEncodingRejected):
		return auditErrEncodingRejected
	case errors.Is(err, ErrBiometricMismatch):
		return auditErrBiometricMismatch
	case errors.Is(err, ErrLockedOut):
		return auditErrLockedOut
	case errors.Is(err, ErrVerificationCancelled):
		return auditErrCancelled
	case errors.Is(err, ErrIdentityExists):
		return auditErrDuplicate
	case errors.Is(err, ErrRoleInvalid):
		return auditErrRoleInvalid
	case errors.Is(err, ErrGrantInvalid):
		return auditErrGrantInvalid
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
