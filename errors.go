package hooks

import "errors"

var (
	// ErrRuntimeNotReady is an exported constant or variable used by the hooks library.
	ErrRuntimeNotReady = errors.New("runtime not initialized")
	// ErrMissingSecret is an exported constant or variable used by the hooks library.
	ErrMissingSecret = errors.New("missing required secret")
	// ErrMissingCode is an exported constant or variable used by the hooks library.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrExchangeFailed is an exported constant or variable used by the hooks library.
	ErrExchangeFailed = errors.New("authorization code exchange failed")
	// ErrVerificationFailed is an exported constant or variable used by the hooks library.
	ErrVerificationFailed = errors.New("token verification failed")
	// ErrNonceMismatch is an exported constant or variable used by the hooks library.
	ErrNonceMismatch = errors.New("nonce mismatch")
	// ErrSubjectMismatch is an exported constant or variable used by the hooks library.
	ErrSubjectMismatch = errors.New("subject mismatch")
	// ErrSubjectNotAllowed is an exported constant or variable used by the hooks library.
	ErrSubjectNotAllowed = errors.New("subject provider not allowed")
	// ErrEmailNotVerified is an exported constant or variable used by the hooks library.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrGrantRateLimited is an exported constant or variable used by the hooks library.
	ErrGrantRateLimited = errors.New("client credentials grant rate limited")
	// ErrRateStoreUnavailable is an exported constant or variable used by the hooks library.
	ErrRateStoreUnavailable = errors.New("rate history store unavailable")
	// ErrSessionLimitExceeded is an exported constant or variable used by the hooks library.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")
	// ErrManagementUnavailable is an exported constant or variable used by the hooks library.
	ErrManagementUnavailable = errors.New("management api unavailable")
	// ErrTokenGrantFailed is an exported constant or variable used by the hooks library.
	ErrTokenGrantFailed = errors.New("client credentials token grant failed")
	// ErrAssertionInvalid is an exported constant or variable used by the hooks library.
	ErrAssertionInvalid = errors.New("saml assertion invalid")
	// ErrUnsupportedSubjectTokenType is an exported constant or variable used by the hooks library.
	ErrUnsupportedSubjectTokenType = errors.New("unsupported subject token type")
	// ErrCountryNotAllowed is an exported constant or variable used by the hooks library.
	ErrCountryNotAllowed = errors.New("phone number country not allowed")
	// ErrNotificationFailed is an exported constant or variable used by the hooks library.
	ErrNotificationFailed = errors.New("notification delivery failed")
	// ErrInvalidLinkRequest is an exported constant or variable used by the hooks library.
	ErrInvalidLinkRequest = errors.New("invalid link request")
)
