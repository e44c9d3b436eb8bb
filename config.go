package hooks

import (
	"errors"
	"regexp"
	"time"
)

// Config defines a public type used by hooks APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	RateLimit         RateLimitConfig
	TokenCache        TokenCacheConfig
	Linking           LinkingConfig
	EmailVerification EmailVerificationConfig
	SessionCount      SessionCountConfig
	Scopes            ScopesConfig
	Domains           DomainsConfig
	Passkey           PasskeyConfig
	JITSignup         JITSignupConfig
	TokenExchange     TokenExchangeConfig
	SAML              SAMLConfig
	CRM               CRMConfig
	PhoneMessage      PhoneMessageConfig
	Slack             SlackConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	HTTPTimeout       time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitPolicy is the per-client grant budget. Clients override it through
// the rate_limits metadata JSON, merged over the configured default.
type RateLimitPolicy struct {
	Enabled    bool          `json:"enabled"`
	MaxGrants  int           `json:"rate_limit_per_time_period"`
	TimePeriod time.Duration `json:"time_period"`
}

// RateLimitConfig defines a public type used by hooks APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Default RateLimitPolicy
	// MaxHistorySize bounds stored history regardless of window size so a
	// runaway client cannot grow the record without limit.
	MaxHistorySize int
	RedisPrefix    string
}

/*
====================================
TOKEN CACHE CONFIG
====================================
*/

// TokenCacheConfig defines a public type used by hooks APIs.
//
// TokenCacheConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenCacheConfig struct {
	CacheKey string
	// ExpiryMargin is subtracted from the reported token lifetime when
	// computing the cache TTL so a cached token never outlives its grant.
	ExpiryMargin time.Duration
}

/*
====================================
LINKING CONFIG
====================================
*/

// LinkingConfig defines a public type used by hooks APIs.
//
// LinkingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LinkingConfig struct {
	// TrustedStrategy is the connection strategy that does not need
	// re-authentication before linking (the credential store).
	TrustedStrategy string
	// TargetConnection is the connection the nested transaction
	// re-authenticates against.
	TargetConnection string
	// AllowedSubjectPrefix gates which verified subjects may be linked.
	AllowedSubjectPrefix string
	// ResourceServer and the two scopes identify client-initiated link and
	// unlink requests.
	ResourceServer string
	LinkScope      string
	UnlinkScope    string
	// MaxTokenAge bounds the age of verified id tokens.
	MaxTokenAge time.Duration
	// MakeLinkedPrimary promotes the verified subject to the primary login
	// identity after a successful link.
	MakeLinkedPrimary bool
	// CustomerIDKey is the app-metadata key merged during silent linking.
	CustomerIDKey string
}

/*
====================================
EMAIL VERIFICATION CONFIG
====================================
*/

// EmailVerificationConfig defines a public type used by hooks APIs.
//
// EmailVerificationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EmailVerificationConfig struct {
	// Connection is the passwordless connection used for the nested proof.
	Connection string
	ClaimName  string
}

/*
====================================
SESSION COUNT CONFIG
====================================
*/

// SessionCountConfig defines a public type used by hooks APIs.
//
// SessionCountConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionCountConfig struct {
	MaxSessions     int
	SessionLifetime time.Duration
	RedisPrefix     string
}

/*
====================================
SCOPES CONFIG
====================================
*/

// ScopesConfig defines a public type used by hooks APIs.
//
// ScopesConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ScopesConfig struct {
	// Limit: clients carrying LimitMetadataKey=true may only request
	// AllowedScopes against audiences matching TargetAudiencePattern.
	LimitMetadataKey      string
	TargetAudiencePattern string
	AllowedScopes         []string

	// Reset: for ResetResourceServer, requested scopes are dropped and
	// ReplacementScopes granted instead.
	ResetResourceServer string
	ReplacementScopes   []string
}

/*
====================================
DOMAIN / COUNTRY GATES
====================================
*/

// DomainsConfig defines a public type used by hooks APIs.
//
// DomainsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DomainsConfig struct {
	DenyList             []string
	AllowList            []string
	DenyClientMetadata   string
	AllowedSMSCountries  []string
	PasswordlessStrategy string
}

/*
====================================
PASSKEY / JIT CONFIG
====================================
*/

// PasskeyConfig defines a public type used by hooks APIs.
//
// PasskeyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasskeyConfig struct {
	ClientMetadataKey string
	DenyMessage       string
}

// JITSignupConfig defines a public type used by hooks APIs.
//
// JITSignupConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JITSignupConfig struct {
	DatabaseStrategy string
	DenyMessage      string
}

/*
====================================
TOKEN EXCHANGE CONFIG
====================================
*/

// TokenExchangeConfig defines a public type used by hooks APIs.
//
// TokenExchangeConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenExchangeConfig struct {
	AccessTokenType string
	// JITSubjectTokenType is the subject token type handled by the
	// just-in-time provisioning exchange; other types never reach it.
	JITSubjectTokenType string
	JITConnection       string
}

// SAMLConfig defines a public type used by hooks APIs.
//
// SAMLConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SAMLConfig struct {
	SubjectTokenType string
	// CertificatePEM is the pinned issuer certificate, injected by the
	// embedding program (never read from local files at runtime).
	CertificatePEM string
}

/*
====================================
OUTBOUND CALL CONFIG
====================================
*/

// CRMConfig defines a public type used by hooks APIs.
//
// CRMConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CRMConfig struct {
	EndpointURL string
	MetadataKey string
}

// PhoneMessageConfig defines a public type used by hooks APIs.
//
// PhoneMessageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PhoneMessageConfig struct {
	AllowedCountries []string
	GatewayBaseURL   string
}

// SlackConfig defines a public type used by hooks APIs.
//
// SlackConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SlackConfig struct {
	WebhookSecretName string
}

/*
====================================
AMBIENT CONFIG
====================================
*/

// AuditConfig defines a public type used by hooks APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by hooks APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms adds per-trigger latency buckets on top of the
	// decision counters.
	EnableLatencyHistograms bool
}

// interactiveLogin matches the protocol tags of interactive login
// transactions. Immutable configuration constant, initialized once.
var interactiveLogin = regexp.MustCompile(`^oidc-`)

// DefaultConfig returns the configuration the builder starts from. Hosts
// that need to tweak a policy take this, adjust fields, and pass the result
// to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Default: RateLimitPolicy{
				Enabled:    true,
				MaxGrants:  10,
				TimePeriod: 24 * time.Hour,
			},
			MaxHistorySize: 100,
			RedisPrefix:    "grh",
		},
		TokenCache: TokenCacheConfig{
			CacheKey:     "management-token",
			ExpiryMargin: time.Minute,
		},
		Linking: LinkingConfig{
			TrustedStrategy:      "auth0",
			TargetConnection:     "Users",
			AllowedSubjectPrefix: "auth0|",
			ResourceServer:       "my-account",
			LinkScope:            "link_account",
			UnlinkScope:          "unlink_account",
			MaxTokenAge:          time.Hour,
			MakeLinkedPrimary:    true,
			CustomerIDKey:        "customer_id",
		},
		EmailVerification: EmailVerificationConfig{
			Connection: "email",
			ClaimName:  "email_verified",
		},
		SessionCount: SessionCountConfig{
			MaxSessions:     10,
			SessionLifetime: 24 * time.Hour,
			RedisPrefix:     "sess",
		},
		Scopes: ScopesConfig{
			LimitMetadataKey:      "partner",
			TargetAudiencePattern: `/api/v2/$`,
			AllowedScopes:         []string{"offline_access", "read:clients"},
		},
		Domains: DomainsConfig{
			DenyClientMetadata:   "partner",
			PasswordlessStrategy: "sms",
		},
		Passkey: PasskeyConfig{
			ClientMetadataKey: "PASSKEY",
			DenyMessage:       "need to login with password",
		},
		JITSignup: JITSignupConfig{
			DatabaseStrategy: "auth0",
			DenyMessage:      "signup unsupported",
		},
		TokenExchange: TokenExchangeConfig{
			AccessTokenType:     "urn:ietf:params:oauth:token-type:access_token",
			JITSubjectTokenType: "urn:ietf:params:oauth:token-type:jwt",
			JITConnection:       "Username-Password-Authentication",
		},
		SAML: SAMLConfig{
			SubjectTokenType: "urn://saml",
		},
		CRM: CRMConfig{
			MetadataKey: "customer_id",
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		HTTPTimeout: 5 * time.Second,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.RateLimit.Default.MaxGrants <= 0 {
		return errors.New("rate limit default max grants must be positive")
	}
	if cfg.RateLimit.Default.TimePeriod <= 0 {
		return errors.New("rate limit default time period must be positive")
	}
	if cfg.RateLimit.MaxHistorySize <= 0 {
		return errors.New("rate limit history ceiling must be positive")
	}
	if cfg.TokenCache.CacheKey == "" {
		return errors.New("token cache key must not be empty")
	}
	if cfg.Linking.LinkScope != "" && cfg.Linking.LinkScope == cfg.Linking.UnlinkScope {
		return errors.New("link and unlink scopes must differ")
	}
	if t := cfg.TokenExchange.JITSubjectTokenType; t != "" && (t == cfg.TokenExchange.AccessTokenType || t == cfg.SAML.SubjectTokenType) {
		return errors.New("jit subject token type collides with another exchange type")
	}
	if cfg.SessionCount.MaxSessions < 0 {
		return errors.New("session count limit must not be negative")
	}
	if cfg.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	return nil
}
