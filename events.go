package hooks

// LoginEvent defines a public type used by hooks APIs.
//
// LoginEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type LoginEvent struct {
	User           User
	Client         Client
	Transaction    Transaction
	Request        Request
	Connection     Connection
	Organization   *Organization
	Session        SessionRef
	Authentication AuthenticationInfo
	ResourceServer ResourceServer
	Stats          Stats
	Secrets        Secrets
}

// TenantDomain returns the canonical tenant domain: the domain secret when
// present, the request hostname otherwise.
func (e *LoginEvent) TenantDomain() string {
	if d := e.Secrets.Get("domain"); d != "" {
		return d
	}
	return e.Request.Hostname
}

// CredentialsExchangeEvent defines a public type used by hooks APIs.
//
// CredentialsExchangeEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type CredentialsExchangeEvent struct {
	Client         Client
	Transaction    Transaction
	Request        Request
	ResourceServer ResourceServer
	Secrets        Secrets
}

// PreRegistrationEvent defines a public type used by hooks APIs.
//
// PreRegistrationEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type PreRegistrationEvent struct {
	User       User
	Client     Client
	Request    Request
	Connection Connection
	Secrets    Secrets
}

// TokenExchangeEvent defines a public type used by hooks APIs.
//
// TokenExchangeEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type TokenExchangeEvent struct {
	Client      Client
	Transaction Transaction
	Request     Request
	Secrets     Secrets
}

// TenantDomain returns the canonical tenant domain: the domain secret when
// present, the request hostname otherwise.
func (e *TokenExchangeEvent) TenantDomain() string {
	if d := e.Secrets.Get("domain"); d != "" {
		return d
	}
	return e.Request.Hostname
}

// PhoneMessageEvent defines a public type used by hooks APIs.
//
// PhoneMessageEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type PhoneMessageEvent struct {
	User           User
	Client         Client
	Request        Request
	MessageOptions MessageOptions
	Secrets        Secrets
}

// EmailProviderEvent defines a public type used by hooks APIs.
//
// EmailProviderEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type EmailProviderEvent struct {
	User         User
	Notification Notification
	Secrets      Secrets
}

// PostChallengeEvent defines a public type used by hooks APIs.
//
// PostChallengeEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type PostChallengeEvent struct {
	User    User
	Client  Client
	Request Request
	Secrets Secrets
}

// ChangePasswordEvent defines a public type used by hooks APIs.
//
// ChangePasswordEvent instances are supplied by the host per invocation and must be treated as immutable snapshots.
type ChangePasswordEvent struct {
	User    User
	Client  Client
	Secrets Secrets
}
