package pinauth

import (
	"context"
	"errors"
)

const (
	auditEventPINVerifySuccess      = "pin_verify_success"
	auditEventPINVerifyFailure      = "pin_verify_failure"
	auditEventPINLocked             = "pin_locked"
	auditEventPINThrottled          = "pin_throttled"
	auditEventCredentialIssued      = "pin_credential_issued"
	auditEventCredentialDeactivated = "pin_credential_deactivated"
	auditEventCredentialUnlocked    = "pin_credential_unlocked"
	auditEventSessionIssued         = "session_issued"
	auditEventSessionDestroyed      = "session_destroyed"
	auditEventSecondFactorRequired  = "second_factor_required"
	auditEventSecondFactorSuccess   = "second_factor_success"
	auditEventSecondFactorFailure   = "second_factor_failure"
	auditEventSecondFactorThrottled = "second_factor_throttled"
	auditEventRouteRedirect         = "route_redirect"
	auditEventRouteDenied           = "route_denied"
)

// AuditErrorCode is the coarse error class recorded on audit events.
type AuditErrorCode string

const (
	auditErrStoreUnavailable AuditErrorCode = "store_unavailable"
	auditErrThrottled        AuditErrorCode = "throttled"
	auditErrSessionInvalid   AuditErrorCode = "session_invalid"
	auditErrSessionCreation  AuditErrorCode = "session_creation_failed"
	auditErrProviderDown     AuditErrorCode = "provider_unavailable"
	auditErrChallengeInvalid AuditErrorCode = "challenge_invalid"
	auditErrInvalidInput     AuditErrorCode = "invalid_input"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	sessionID string,
	reason string,
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
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		SessionID:   sessionID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Reason:      reason,
		Metadata:    metadata,
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
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrThrottled):
		return auditErrThrottled
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreation
	case errors.Is(err, ErrSecondFactorUnavailable),
		errors.Is(err, ErrCapabilityUnavailable),
		errors.Is(err, ErrPreferenceUnavailable):
		return auditErrProviderDown
	case errors.Is(err, ErrSecondFactorChallengeInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrInvalidPINFormat),
		errors.Is(err, ErrInvalidPrincipal):
		return auditErrInvalidInput
	default:
		return auditErrInternal
	}
}
