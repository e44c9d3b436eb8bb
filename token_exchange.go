package hooks

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/idplane/hooks/idtoken"
)

// SwitchClientExchangeAction accepts a tenant-issued access token as the
// subject token and re-binds the exchange transaction to its subject. The
// token is verified against the tenant JWKS on issuer only; the original
// audience is irrelevant once a new token is being minted.
//
// Subject token types owned by other exchange actions are passed through
// untouched; [ExchangeTypeGuardAction] settles types nobody claims.
type SwitchClientExchangeAction struct {
	rt *Runtime
}

// NewSwitchClientExchange describes the newswitchclientexchange operation and its observable behavior.
func NewSwitchClientExchange(rt *Runtime) *SwitchClientExchangeAction {
	return &SwitchClientExchangeAction{rt: rt}
}

// Execute implements [TokenExchangeHandler].
func (a *SwitchClientExchangeAction) Execute(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI) error {
	if event.Transaction.SubjectTokenType != a.rt.config.TokenExchange.AccessTokenType {
		return nil
	}

	domain := event.TenantDomain()
	claims, err := a.rt.verifyAccessToken(ctx, domain, event.Transaction.SubjectToken, api)
	if err != nil {
		a.deny(ctx, event, api, "subject token verification failed", err)
		return nil
	}
	if claims.Subject == "" {
		a.deny(ctx, event, api, "subject token missing sub", ErrVerificationFailed)
		return nil
	}

	api.SetUserByID(claims.Subject)

	a.rt.metricInc(MetricExchangeSuccess)
	a.rt.emitAudit(ctx, TriggerTokenExchange, "switch-client", auditEventExchangeSuccess, true,
		claims.Subject, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

func (a *SwitchClientExchangeAction) deny(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI, description string, cause error) {
	api.Deny("invalid_request", description)
	a.rt.metricInc(MetricExchangeDenied)
	a.rt.emitAudit(ctx, TriggerTokenExchange, "switch-client", auditEventExchangeDenied, false,
		"", event.Client.ClientID, event.Transaction.ID, event.Request.IP, cause, nil)
}

// verifyAccessToken validates a tenant-issued RS256 access token on signature,
// expiry, and issuer. Audience is not checked.
func (r *Runtime) verifyAccessToken(ctx context.Context, domain, raw string, cache CacheAPI) (*jwt.RegisteredClaims, error) {
	resolver, err := r.resolverFor(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if cache != nil {
		resolver = idtoken.NewCachingResolver(resolver, hostCacheAdapter{cache: cache})
	}

	claims := &jwt.RegisteredClaims{}
	keyfunc := func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrVerificationFailed)
		}
		return resolver.Resolve(ctx, kid)
	}

	_, err = jwt.ParseWithClaims(raw, claims, keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer("https://"+domain+"/"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return claims, nil
}

// jitProfile is the subject-token claim set used to provision the user.
type jitProfile struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	jwt.RegisteredClaims
}

// JITUserExchangeAction provisions a user from the subject token on first
// exchange. Claims are decoded without signature verification: the upstream
// issuer is reached over a pre-authenticated channel, so the transport is the
// trust boundary.
//
// Only tokens of the configured JIT subject token type are handled; anything
// else is left for the sibling actions and the type guard.
type JITUserExchangeAction struct {
	rt *Runtime
}

// NewJITUserExchange describes the newjituserexchange operation and its observable behavior.
func NewJITUserExchange(rt *Runtime) *JITUserExchangeAction {
	return &JITUserExchangeAction{rt: rt}
}

// Execute implements [TokenExchangeHandler].
func (a *JITUserExchangeAction) Execute(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI) error {
	if event.Transaction.SubjectTokenType != a.rt.config.TokenExchange.JITSubjectTokenType {
		return nil
	}

	profile := &jitProfile{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(event.Transaction.SubjectToken, profile); err != nil {
		a.deny(ctx, event, api, "malformed subject token", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
		return nil
	}
	if profile.Subject == "" {
		a.deny(ctx, event, api, "subject token missing sub", ErrVerificationFailed)
		return nil
	}

	api.SetUserByConnection(a.rt.config.TokenExchange.JITConnection, ConnectionUser{
		UserID:        profile.Subject,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		Name:          profile.Name,
		GivenName:     profile.GivenName,
		FamilyName:    profile.FamilyName,
	}, SetUserOptions{
		CreationBehavior: "create_if_not_exists",
		UpdateBehavior:   "none",
	})

	a.rt.metricInc(MetricExchangeSuccess)
	a.rt.emitAudit(ctx, TriggerTokenExchange, "jit-user", auditEventExchangeSuccess, true,
		profile.Subject, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

func (a *JITUserExchangeAction) deny(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI, description string, cause error) {
	api.Deny("invalid_request", description)
	a.rt.metricInc(MetricExchangeDenied)
	a.rt.emitAudit(ctx, TriggerTokenExchange, "jit-user", auditEventExchangeDenied, false,
		"", event.Client.ClientID, event.Transaction.ID, event.Request.IP, cause, nil)
}

// ExchangeTypeGuardAction denies exchanges whose subject token type is owned
// by no configured exchange action. It is registered after the typed actions,
// so a recognized type has already been settled by its owner when the guard
// runs.
type ExchangeTypeGuardAction struct {
	rt *Runtime
}

// NewExchangeTypeGuard describes the newexchangetypeguard operation and its observable behavior.
func NewExchangeTypeGuard(rt *Runtime) *ExchangeTypeGuardAction {
	return &ExchangeTypeGuardAction{rt: rt}
}

// Execute implements [TokenExchangeHandler].
func (a *ExchangeTypeGuardAction) Execute(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI) error {
	tokenType := event.Transaction.SubjectTokenType
	known := []string{
		a.rt.config.TokenExchange.AccessTokenType,
		a.rt.config.TokenExchange.JITSubjectTokenType,
		a.rt.config.SAML.SubjectTokenType,
	}
	for _, candidate := range known {
		if candidate != "" && tokenType == candidate {
			return nil
		}
	}

	api.Deny("invalid_request", "unsupported subject token type")
	a.rt.metricInc(MetricExchangeDenied)
	a.rt.emitAudit(ctx, TriggerTokenExchange, "exchange-guard", auditEventExchangeDenied, false,
		"", event.Client.ClientID, event.Transaction.ID, event.Request.IP, ErrUnsupportedSubjectTokenType, nil)
	return nil
}
