package hooks

import "context"

// The capability interfaces below model the api object the host passes to a
// handler. Every method is mandatory: test doubles implement the full
// interface (see noop.go) instead of shimming optional methods onto a map.
// Effects requested through these interfaces are applied by the host after
// the handler returns; they are requests, not immediate mutations.

// AccessAPI requests denial of the current transaction.
type AccessAPI interface {
	// Deny records a denial with a machine-readable reason and a
	// human-readable description. The host decides the user-facing response.
	Deny(reason, description string)
}

// RedirectAPI sends the browser to an external URL and suspends the
// transaction until the continue hook fires.
type RedirectAPI interface {
	SendUserTo(url string)
}

// CacheAPI is the host-provided cache shared across invocations of the same
// handler. Entries are eventually consistent and carry no transactional
// guarantees.
type CacheAPI interface {
	Get(key string) (CacheEntry, bool)
	Set(key, value string, opts CacheSetOptions) error
}

// ClaimsAPI sets custom claims on the issued token.
type ClaimsAPI interface {
	SetCustomClaim(name string, value any)
}

// ScopesAPI edits the scopes granted on the issued access token.
type ScopesAPI interface {
	AddScope(scope string)
	RemoveScope(scope string)
}

// UserAPI mutates application-defined metadata on the user record.
type UserAPI interface {
	SetAppMetadata(name string, value any)
}

// SessionAPI revokes the session created by the current login.
type SessionAPI interface {
	Revoke(reason string, opts RevokeOptions)
}

// AuthenticationAPI drives additional authentication inside the transaction.
type AuthenticationAPI interface {
	ChallengeWith(factor Factor, opts ChallengeOptions)
	ChallengeWithAny(factors []Factor)
	SetPrimaryUser(userID string)
}

// TransactionAPI writes metadata visible to later handlers in the same
// transaction or its continuation.
type TransactionAPI interface {
	SetMetadata(name, value string)
}

// ExchangeAuthenticationAPI binds the token-exchange transaction to a user.
type ExchangeAuthenticationAPI interface {
	SetUserByID(userID string)
	SetUserByConnection(connection string, user ConnectionUser, opts SetUserOptions)
}

// LoginAPI defines a public type used by hooks APIs.
//
// LoginAPI aggregates every capability available to post-login handlers.
type LoginAPI interface {
	AccessAPI
	RedirectAPI
	CacheAPI
	ClaimsAPI
	ScopesAPI
	UserAPI
	SessionAPI
	AuthenticationAPI
	TransactionAPI
}

// CredentialsExchangeAPI defines a public type used by hooks APIs.
//
// CredentialsExchangeAPI aggregates every capability available to client-credentials handlers.
type CredentialsExchangeAPI interface {
	AccessAPI
	CacheAPI
	ClaimsAPI
}

// PreRegistrationAPI defines a public type used by hooks APIs.
//
// PreRegistrationAPI aggregates every capability available to pre-registration handlers.
type PreRegistrationAPI interface {
	AccessAPI
	CacheAPI
	UserAPI
}

// TokenExchangeAPI defines a public type used by hooks APIs.
//
// TokenExchangeAPI aggregates every capability available to custom token exchange handlers.
type TokenExchangeAPI interface {
	AccessAPI
	CacheAPI
	ExchangeAuthenticationAPI
}

// PostChallengeAPI defines a public type used by hooks APIs.
//
// PostChallengeAPI aggregates every capability available to password-reset post-challenge handlers.
type PostChallengeAPI interface {
	AccessAPI
	AuthenticationAPI
}

// LoginHandler is one post-login action. Continue is invoked only after the
// handler redirected through [RedirectAPI] and the user returned.
type LoginHandler interface {
	Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error
	Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error
}

// CredentialsExchangeHandler is one client-credentials action.
type CredentialsExchangeHandler interface {
	Execute(ctx context.Context, event *CredentialsExchangeEvent, api CredentialsExchangeAPI) error
}

// PreRegistrationHandler is one pre-registration action.
type PreRegistrationHandler interface {
	Execute(ctx context.Context, event *PreRegistrationEvent, api PreRegistrationAPI) error
}

// TokenExchangeHandler is one custom token exchange action.
type TokenExchangeHandler interface {
	Execute(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI) error
}

// PhoneMessageHandler is one send-phone-message action.
type PhoneMessageHandler interface {
	Execute(ctx context.Context, event *PhoneMessageEvent) error
}

// EmailProviderHandler is one custom email provider action.
type EmailProviderHandler interface {
	Execute(ctx context.Context, event *EmailProviderEvent) error
}

// PostChallengeHandler is one password-reset post-challenge action.
type PostChallengeHandler interface {
	Execute(ctx context.Context, event *PostChallengeEvent, api PostChallengeAPI) error
}

// ChangePasswordHandler is one post-change-password action.
type ChangePasswordHandler interface {
	Execute(ctx context.Context, event *ChangePasswordEvent) error
}
