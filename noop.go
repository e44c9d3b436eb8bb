package hooks

// NoopAPI implements every capability interface with no-ops. It exists so
// tests and partial host integrations can satisfy the aggregate API
// interfaces without shimming optional methods (every capability method is
// mandatory by design).
type NoopAPI struct{}

var (
	_ LoginAPI               = NoopAPI{}
	_ CredentialsExchangeAPI = NoopAPI{}
	_ PreRegistrationAPI     = NoopAPI{}
	_ TokenExchangeAPI       = NoopAPI{}
	_ PostChallengeAPI       = NoopAPI{}
)

// Deny implements [AccessAPI].
func (NoopAPI) Deny(string, string) {}

// SendUserTo implements [RedirectAPI].
func (NoopAPI) SendUserTo(string) {}

// Get implements [CacheAPI]. It always misses.
func (NoopAPI) Get(string) (CacheEntry, bool) { return CacheEntry{}, false }

// Set implements [CacheAPI]. It always succeeds and stores nothing.
func (NoopAPI) Set(string, string, CacheSetOptions) error { return nil }

// SetCustomClaim implements [ClaimsAPI].
func (NoopAPI) SetCustomClaim(string, any) {}

// AddScope implements [ScopesAPI].
func (NoopAPI) AddScope(string) {}

// RemoveScope implements [ScopesAPI].
func (NoopAPI) RemoveScope(string) {}

// SetAppMetadata implements [UserAPI].
func (NoopAPI) SetAppMetadata(string, any) {}

// Revoke implements [SessionAPI].
func (NoopAPI) Revoke(string, RevokeOptions) {}

// ChallengeWith implements [AuthenticationAPI].
func (NoopAPI) ChallengeWith(Factor, ChallengeOptions) {}

// ChallengeWithAny implements [AuthenticationAPI].
func (NoopAPI) ChallengeWithAny([]Factor) {}

// SetPrimaryUser implements [AuthenticationAPI].
func (NoopAPI) SetPrimaryUser(string) {}

// SetMetadata implements [TransactionAPI].
func (NoopAPI) SetMetadata(string, string) {}

// SetUserByID implements [ExchangeAuthenticationAPI].
func (NoopAPI) SetUserByID(string) {}

// SetUserByConnection implements [ExchangeAuthenticationAPI].
func (NoopAPI) SetUserByConnection(string, ConnectionUser, SetUserOptions) {}
