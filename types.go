package hooks

import "time"

// Identity is one linked identity on a user record: the upstream provider,
// the connection it came through, and the per-provider user id.
type Identity struct {
	Provider   string
	Connection string
	UserID     string
	IsSocial   bool
}

// EnrolledFactor is an MFA factor the user has enrolled with the host.
type EnrolledFactor struct {
	Type            string
	Method          string
	PreferredMethod string
}

// User defines a public type used by hooks APIs.
//
// User instances are supplied by the host per invocation and must be treated as immutable snapshots.
type User struct {
	UserID          string
	Email           string
	EmailVerified   bool
	PhoneNumber     string
	PhoneVerified   bool
	Username        string
	Name            string
	GivenName       string
	FamilyName      string
	Nickname        string
	Identities      []Identity
	EnrolledFactors []EnrolledFactor
	AppMetadata     map[string]any
}

// PrimaryIdentity returns the first linked identity and reports whether one exists.
func (u *User) PrimaryIdentity() (Identity, bool) {
	if u == nil || len(u.Identities) == 0 {
		return Identity{}, false
	}
	return u.Identities[0], true
}

// Client defines a public type used by hooks APIs.
//
// Client instances are supplied by the host per invocation and must be treated as immutable snapshots.
type Client struct {
	ClientID string
	Name     string
	Metadata map[string]string
}

// Transaction defines a public type used by hooks APIs.
//
// Transaction instances are supplied by the host per invocation and must be treated as immutable snapshots.
type Transaction struct {
	ID              string
	Protocol        string
	RequestedScopes []string
	Metadata        map[string]string

	// Token exchange only.
	SubjectTokenType string
	SubjectToken     string
}

// HasScope reports whether the transaction requested the given scope.
func (t *Transaction) HasScope(scope string) bool {
	if t == nil {
		return false
	}
	for _, s := range t.RequestedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Request defines a public type used by hooks APIs.
//
// Request instances are supplied by the host per invocation and must be treated as immutable snapshots.
type Request struct {
	Hostname string
	IP       string
	Query    map[string]string
}

// Organization defines a public type used by hooks APIs.
//
// Organization instances are supplied by the host per invocation and must be treated as immutable snapshots.
type Organization struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// Connection identifies the connection the current authentication came through.
type Connection struct {
	ID       string
	Name     string
	Strategy string
}

// SessionRef identifies the host-side session created for the login.
type SessionRef struct {
	ID string
}

// AuthenticationMethod is one completed authentication method in the current
// transaction (e.g. "pwd", "passkey", "mfa").
type AuthenticationMethod struct {
	Name string
}

// AuthenticationInfo describes how the user authenticated.
type AuthenticationInfo struct {
	Methods []AuthenticationMethod
}

// UsedMethod reports whether the named method was completed.
func (a *AuthenticationInfo) UsedMethod(name string) bool {
	if a == nil {
		return false
	}
	for _, m := range a.Methods {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Stats carries host-maintained counters about the user.
type Stats struct {
	LoginsCount int
}

// ResourceServer identifies the audience the transaction targets.
type ResourceServer struct {
	Identifier string
}

// Secrets holds per-tenant configuration injected by the host. Values are
// opaque to this library; accessors return the empty string for absent keys.
type Secrets map[string]string

// Get returns the named secret or the empty string.
func (s Secrets) Get(name string) string {
	if s == nil {
		return ""
	}
	return s[name]
}

// MessageOptions describes an outbound phone message requested by the host.
type MessageOptions struct {
	Action      string
	Text        string
	Recipient   string
	MessageType string
}

// Notification describes an outbound email notification requested by the host.
type Notification struct {
	MessageType string
	Text        string
	To          string
}

// CacheEntry is a value read from the host cache.
type CacheEntry struct {
	Value string
}

// CacheSetOptions controls cache writes. A zero TTL means host default.
type CacheSetOptions struct {
	TTL time.Duration
}

// RevokeOptions controls session revocation.
type RevokeOptions struct {
	PreserveRefreshTokens bool
}

// Factor is an MFA challenge descriptor passed to the authentication API.
type Factor struct {
	Type            string
	PreferredMethod string
}

// ChallengeOptions carries additional factors accepted for a challenge.
type ChallengeOptions struct {
	AdditionalFactors []Factor
}

// SetUserOptions controls provisioning behavior for SetUserByConnection.
type SetUserOptions struct {
	CreationBehavior string
	UpdateBehavior   string
}

// ConnectionUser is the profile handed to SetUserByConnection.
type ConnectionUser struct {
	UserID        string
	Email         string
	EmailVerified bool
	PhoneNumber   string
	PhoneVerified bool
	Username      string
	Name          string
	GivenName     string
	FamilyName    string
	Nickname      string
	VerifyEmail   bool
}
