package hooks

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventGrantAllowed         = "grant_allowed"
	auditEventGrantRateLimited     = "grant_rate_limited"
	auditEventGrantFailOpen        = "grant_fail_open"
	auditEventLinkRedirect         = "link_redirect"
	auditEventLinkSuccess          = "link_success"
	auditEventLinkDenied           = "link_denied"
	auditEventUnlinkSuccess        = "unlink_success"
	auditEventSilentLink           = "silent_link"
	auditEventEmailVerified        = "email_verified_claim"
	auditEventSessionRegistered    = "session_registered"
	auditEventSessionLimitExceeded = "session_limit_exceeded"
	auditEventScopeLimited         = "scope_limited"
	auditEventScopeReset           = "scope_reset"
	auditEventDomainDenied         = "domain_denied"
	auditEventCountryDenied        = "country_denied"
	auditEventPasskeyBlocked       = "passkey_blocked"
	auditEventJITSignupBlocked     = "jit_signup_blocked"
	auditEventExchangeSuccess      = "exchange_success"
	auditEventExchangeDenied       = "exchange_denied"
	auditEventTokenCacheRefresh    = "token_cache_refresh"
	auditEventSMSSent              = "sms_sent"
	auditEventSMSBlocked           = "sms_blocked"
	auditEventEmailDispatched      = "email_dispatched"
	auditEventCRMEnriched          = "crm_enriched"
	auditEventCRMUnavailable       = "crm_unavailable"
	auditEventChallengeIssued      = "challenge_issued"
	auditEventPasswordChangeNotice = "password_change_notice"
	auditEventHandlerError         = "handler_error"
)

// AuditErrorCode defines a public type used by hooks APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrStoreUnavailable  AuditErrorCode = "store_unavailable"
	auditErrMissingSecret     AuditErrorCode = "missing_secret"
	auditErrMissingCode       AuditErrorCode = "missing_code"
	auditErrExchangeFailed    AuditErrorCode = "exchange_failed"
	auditErrVerification      AuditErrorCode = "verification_failed"
	auditErrNonceMismatch     AuditErrorCode = "nonce_mismatch"
	auditErrSubjectMismatch   AuditErrorCode = "subject_mismatch"
	auditErrSubjectNotAllowed AuditErrorCode = "subject_not_allowed"
	auditErrEmailNotVerified  AuditErrorCode = "email_not_verified"
	auditErrSessionLimit      AuditErrorCode = "session_limit_exceeded"
	auditErrManagement        AuditErrorCode = "management_unavailable"
	auditErrTokenGrant        AuditErrorCode = "token_grant_failed"
	auditErrAssertion         AuditErrorCode = "assertion_invalid"
	auditErrTokenType         AuditErrorCode = "unsupported_token_type"
	auditErrCountry           AuditErrorCode = "country_not_allowed"
	auditErrNotification      AuditErrorCode = "notification_failed"
	auditErrLinkRequest       AuditErrorCode = "invalid_link_request"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (r *Runtime) emitAudit(
	ctx context.Context,
	trigger string,
	action string,
	eventType string,
	success bool,
	userID string,
	clientID string,
	transactionID string,
	ip string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if r == nil || r.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:     time.Now().UTC(),
		Trigger:       trigger,
		Action:        action,
		EventType:     eventType,
		UserID:        userID,
		ClientID:      clientID,
		TransactionID: transactionID,
		IP:            ip,
		Success:       success,
		Metadata:      metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	r.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrGrantRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRateStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrMissingSecret):
		return auditErrMissingSecret
	case errors.Is(err, ErrMissingCode):
		return auditErrMissingCode
	case errors.Is(err, ErrExchangeFailed):
		return auditErrExchangeFailed
	case errors.Is(err, ErrNonceMismatch):
		return auditErrNonceMismatch
	case errors.Is(err, ErrSubjectMismatch):
		return auditErrSubjectMismatch
	case errors.Is(err, ErrSubjectNotAllowed):
		return auditErrSubjectNotAllowed
	case errors.Is(err, ErrVerificationFailed):
		return auditErrVerification
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrEmailNotVerified
	case errors.Is(err, ErrSessionLimitExceeded):
		return auditErrSessionLimit
	case errors.Is(err, ErrManagementUnavailable):
		return auditErrManagement
	case errors.Is(err, ErrTokenGrantFailed):
		return auditErrTokenGrant
	case errors.Is(err, ErrAssertionInvalid):
		return auditErrAssertion
	case errors.Is(err, ErrUnsupportedSubjectTokenType):
		return auditErrTokenType
	case errors.Is(err, ErrCountryNotAllowed):
		return auditErrCountry
	case errors.Is(err, ErrNotificationFailed):
		return auditErrNotification
	case errors.Is(err, ErrInvalidLinkRequest):
		return auditErrLinkRequest
	default:
		return auditErrInternal
	}
}
