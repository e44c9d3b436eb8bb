package hooks

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/idplane/hooks/internal/m2m"
	"github.com/idplane/hooks/internal/mgmt"
	"github.com/idplane/hooks/internal/stores"
	"github.com/idplane/hooks/saml"
	"github.com/redis/go-redis/v9"
)

// Trigger names as they appear in audit events.
const (
	TriggerPostLogin           = "post-login"
	TriggerCredentialsExchange = "credentials-exchange"
	TriggerPreRegistration     = "pre-user-registration"
	TriggerTokenExchange       = "custom-token-exchange"
	TriggerPhoneMessage        = "send-phone-message"
	TriggerEmailProvider       = "custom-email-provider"
	TriggerPostChallenge       = "password-reset-post-challenge"
	TriggerChangePassword      = "post-change-password"
)

// Well-known secret names every event is expected to carry.
const (
	secretDomain       = "domain"
	secretClientID     = "clientId"
	secretClientSecret = "clientSecret"
)

// grantHistory is the persisted grant timestamp window behind the rate
// limiter, satisfied by [stores.GrantHistoryStore].
type grantHistory interface {
	Load(ctx context.Context, clientID string) ([]time.Time, error)
	Save(ctx context.Context, clientID string, stamps []time.Time, ttl time.Duration) error
}

type registeredLogin struct {
	name    string
	handler LoginHandler
}

type registeredCredentials struct {
	name    string
	handler CredentialsExchangeHandler
}

type registeredPreRegistration struct {
	name    string
	handler PreRegistrationHandler
}

type registeredTokenExchange struct {
	name    string
	handler TokenExchangeHandler
}

type registeredPhoneMessage struct {
	name    string
	handler PhoneMessageHandler
}

type registeredEmailProvider struct {
	name    string
	handler EmailProviderHandler
}

type registeredPostChallenge struct {
	name    string
	handler PostChallengeHandler
}

type registeredChangePassword struct {
	name    string
	handler ChangePasswordHandler
}

// Runtime defines a public type used by hooks APIs.
//
// Runtime instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Runtime struct {
	config       Config
	redis        *redis.Client
	httpClient   *http.Client
	history      grantHistory
	sessions     *stores.SessionRegistry
	samlVerifier *saml.Verifier
	audit        *auditDispatcher
	metrics      *Metrics

	// JWKS resolvers keyed by tenant domain, created lazily.
	resolvers sync.Map

	loginHandlers          []registeredLogin
	credentialsHandlers    []registeredCredentials
	preRegistrationHandler []registeredPreRegistration
	tokenExchangeHandlers  []registeredTokenExchange
	phoneMessageHandlers   []registeredPhoneMessage
	emailProviderHandlers  []registeredEmailProvider
	postChallengeHandlers  []registeredPostChallenge
	changePasswordHandlers []registeredChangePassword
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.audit != nil {
		r.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Runtime) AuditDropped() uint64 {
	if r == nil || r.audit == nil {
		return 0
	}
	return r.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Runtime) MetricsSnapshot() MetricsSnapshot {
	if r == nil || r.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return r.metrics.Snapshot()
}

func (r *Runtime) metricInc(id MetricID) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.Inc(id)
}

func (r *Runtime) metricObserve(start time.Time) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.Observe(MetricHandlerLatency, time.Since(start))
}

/*
====================================
HANDLER REGISTRATION
====================================
*/

// OnLogin describes the onlogin operation and its observable behavior.
//
// OnLogin registers a post-login action. Actions run in registration order;
// the first error stops the chain, and so does a denial recorded through the
// api.
func (r *Runtime) OnLogin(name string, h LoginHandler) *Runtime {
	r.loginHandlers = append(r.loginHandlers, registeredLogin{name: name, handler: h})
	return r
}

// OnCredentialsExchange describes the oncredentialsexchange operation and its observable behavior.
func (r *Runtime) OnCredentialsExchange(name string, h CredentialsExchangeHandler) *Runtime {
	r.credentialsHandlers = append(r.credentialsHandlers, registeredCredentials{name: name, handler: h})
	return r
}

// OnPreRegistration describes the onpreregistration operation and its observable behavior.
func (r *Runtime) OnPreRegistration(name string, h PreRegistrationHandler) *Runtime {
	r.preRegistrationHandler = append(r.preRegistrationHandler, registeredPreRegistration{name: name, handler: h})
	return r
}

// OnTokenExchange describes the ontokenexchange operation and its observable behavior.
func (r *Runtime) OnTokenExchange(name string, h TokenExchangeHandler) *Runtime {
	r.tokenExchangeHandlers = append(r.tokenExchangeHandlers, registeredTokenExchange{name: name, handler: h})
	return r
}

// OnPhoneMessage describes the onphonemessage operation and its observable behavior.
func (r *Runtime) OnPhoneMessage(name string, h PhoneMessageHandler) *Runtime {
	r.phoneMessageHandlers = append(r.phoneMessageHandlers, registeredPhoneMessage{name: name, handler: h})
	return r
}

// OnEmailProvider describes the onemailprovider operation and its observable behavior.
func (r *Runtime) OnEmailProvider(name string, h EmailProviderHandler) *Runtime {
	r.emailProviderHandlers = append(r.emailProviderHandlers, registeredEmailProvider{name: name, handler: h})
	return r
}

// OnPostChallenge describes the onpostchallenge operation and its observable behavior.
func (r *Runtime) OnPostChallenge(name string, h PostChallengeHandler) *Runtime {
	r.postChallengeHandlers = append(r.postChallengeHandlers, registeredPostChallenge{name: name, handler: h})
	return r
}

// OnChangePassword describes the onchangepassword operation and its observable behavior.
func (r *Runtime) OnChangePassword(name string, h ChangePasswordHandler) *Runtime {
	r.changePasswordHandlers = append(r.changePasswordHandlers, registeredChangePassword{name: name, handler: h})
	return r
}

/*
====================================
DISPATCH
====================================
*/

// denyState tracks whether a handler in the current chain recorded a denial.
// A denied transaction is settled: handlers further down the chain must not
// run, or a non-matching sibling could overwrite the outcome.
type denyState struct {
	denied bool
}

type trackedLoginAPI struct {
	LoginAPI
	state *denyState
}

func (a trackedLoginAPI) Deny(reason, description string) {
	a.state.denied = true
	a.LoginAPI.Deny(reason, description)
}

type trackedCredentialsAPI struct {
	CredentialsExchangeAPI
	state *denyState
}

func (a trackedCredentialsAPI) Deny(reason, description string) {
	a.state.denied = true
	a.CredentialsExchangeAPI.Deny(reason, description)
}

type trackedPreRegistrationAPI struct {
	PreRegistrationAPI
	state *denyState
}

func (a trackedPreRegistrationAPI) Deny(reason, description string) {
	a.state.denied = true
	a.PreRegistrationAPI.Deny(reason, description)
}

type trackedTokenExchangeAPI struct {
	TokenExchangeAPI
	state *denyState
}

func (a trackedTokenExchangeAPI) Deny(reason, description string) {
	a.state.denied = true
	a.TokenExchangeAPI.Deny(reason, description)
}

type trackedPostChallengeAPI struct {
	PostChallengeAPI
	state *denyState
}

func (a trackedPostChallengeAPI) Deny(reason, description string) {
	a.state.denied = true
	a.PostChallengeAPI.Deny(reason, description)
}

// ExecuteLogin runs registered post-login actions against the event until one
// errors or records a denial.
func (r *Runtime) ExecuteLogin(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	state := &denyState{}
	wrapped := trackedLoginAPI{LoginAPI: api, state: state}
	for _, reg := range r.loginHandlers {
		start := time.Now()
		err := reg.handler.Execute(ctx, event, wrapped)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerPostLogin, reg.name, event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
		if state.denied {
			break
		}
	}
	return nil
}

// ContinueLogin resumes post-login actions after a redirect returned.
func (r *Runtime) ContinueLogin(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	state := &denyState{}
	wrapped := trackedLoginAPI{LoginAPI: api, state: state}
	for _, reg := range r.loginHandlers {
		start := time.Now()
		err := reg.handler.Continue(ctx, event, wrapped)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerPostLogin, reg.name, event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
		if state.denied {
			break
		}
	}
	return nil
}

// ExecuteCredentialsExchange runs registered client-credentials actions until
// one errors or records a denial.
func (r *Runtime) ExecuteCredentialsExchange(ctx context.Context, event *CredentialsExchangeEvent, api CredentialsExchangeAPI) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	state := &denyState{}
	wrapped := trackedCredentialsAPI{CredentialsExchangeAPI: api, state: state}
	for _, reg := range r.credentialsHandlers {
		start := time.Now()
		err := reg.handler.Execute(ctx, event, wrapped)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerCredentialsExchange, reg.name, "", event.Client.ClientID, event.Transaction.ID, event.Request.IP, err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
		if state.denied {
			break
		}
	}
	return nil
}

// ExecutePreRegistration runs registered pre-registration actions until one
// errors or records a denial.
func (r *Runtime) ExecutePreRegistration(ctx context.Context, event *PreRegistrationEvent, api PreRegistrationAPI) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	state := &denyState{}
	wrapped := trackedPreRegistrationAPI{PreRegistrationAPI: api, state: state}
	for _, reg := range r.preRegistrationHandler {
		start := time.Now()
		err := reg.handler.Execute(ctx, event, wrapped)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerPreRegistration, reg.name, event.User.UserID, event.Client.ClientID, "", event.Request.IP, err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
		if state.denied {
			break
		}
	}
	return nil
}

// ExecuteTokenExchange runs registered custom token exchange actions until
// one errors or records a denial.
func (r *Runtime) ExecuteTokenExchange(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	state := &denyState{}
	wrapped := trackedTokenExchangeAPI{TokenExchangeAPI: api, state: state}
	for _, reg := range r.tokenExchangeHandlers {
		start := time.Now()
		err := reg.handler.Execute(ctx, event, wrapped)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerTokenExchange, reg.name, "", event.Client.ClientID, event.Transaction.ID, event.Request.IP, err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
		if state.denied {
			break
		}
	}
	return nil
}

// ExecutePhoneMessage runs every registered send-phone-message action.
func (r *Runtime) ExecutePhoneMessage(ctx context.Context, event *PhoneMessageEvent) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	for _, reg := range r.phoneMessageHandlers {
		start := time.Now()
		err := reg.handler.Execute(ctx, event)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerPhoneMessage, reg.name, event.User.UserID, event.Client.ClientID, "", event.Request.IP, err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
	}
	return nil
}

// ExecuteEmailProvider runs every registered custom email provider action.
func (r *Runtime) ExecuteEmailProvider(ctx context.Context, event *EmailProviderEvent) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	for _, reg := range r.emailProviderHandlers {
		start := time.Now()
		err := reg.handler.Execute(ctx, event)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerEmailProvider, reg.name, event.User.UserID, "", "", "", err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
	}
	return nil
}

// ExecutePostChallenge runs registered password-reset post-challenge actions
// until one errors or records a denial.
func (r *Runtime) ExecutePostChallenge(ctx context.Context, event *PostChallengeEvent, api PostChallengeAPI) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	state := &denyState{}
	wrapped := trackedPostChallengeAPI{PostChallengeAPI: api, state: state}
	for _, reg := range r.postChallengeHandlers {
		start := time.Now()
		err := reg.handler.Execute(ctx, event, wrapped)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerPostChallenge, reg.name, event.User.UserID, event.Client.ClientID, "", event.Request.IP, err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
		if state.denied {
			break
		}
	}
	return nil
}

// ExecuteChangePassword runs every registered post-change-password action.
func (r *Runtime) ExecuteChangePassword(ctx context.Context, event *ChangePasswordEvent) error {
	if r == nil {
		return ErrRuntimeNotReady
	}
	for _, reg := range r.changePasswordHandlers {
		start := time.Now()
		err := reg.handler.Execute(ctx, event)
		r.metricObserve(start)
		if err != nil {
			r.handlerFailed(ctx, TriggerChangePassword, reg.name, event.User.UserID, event.Client.ClientID, "", "", err)
			return fmt.Errorf("%s: %w", reg.name, err)
		}
	}
	return nil
}

func (r *Runtime) handlerFailed(ctx context.Context, trigger, action, userID, clientID, transactionID, ip string, err error) {
	r.metricInc(MetricHandlerError)
	r.emitAudit(ctx, trigger, action, auditEventHandlerError, false, userID, clientID, transactionID, ip, err, nil)
}

/*
====================================
MANAGEMENT API PLUMBING
====================================
*/

// managementToken returns a cached management API token, performing a
// client-credentials grant on cache miss. Cache write failures are logged and
// ignored so a broken cache degrades to one grant per invocation.
func (r *Runtime) managementToken(ctx context.Context, domain, clientID, clientSecret string, cache CacheAPI) (string, error) {
	key := r.config.TokenCache.CacheKey

	if cache != nil {
		if entry, ok := cache.Get(key); ok && entry.Value != "" {
			r.metricInc(MetricTokenCacheHit)
			return entry.Value, nil
		}
	}
	r.metricInc(MetricTokenCacheMiss)

	grantor := m2m.New(m2m.Config{
		Domain:       domain,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Audience:     "https://" + domain + "/api/v2/",
		HTTPClient:   r.httpClient,
	})

	token, lifetime, err := grantor.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGrantFailed, err)
	}

	ttl := lifetime - r.config.TokenCache.ExpiryMargin
	if cache != nil && ttl > 0 {
		if err := cache.Set(key, token, CacheSetOptions{TTL: ttl}); err != nil {
			log.Print("hooks: management token cache write failed: ", err)
		}
	}

	return token, nil
}

// management builds a management API client whose tokens flow through the
// host cache. Secrets must carry domain, clientId and clientSecret.
func (r *Runtime) management(secrets Secrets, cache CacheAPI) (*mgmt.Client, error) {
	domain := secrets.Get(secretDomain)
	clientID := secrets.Get(secretClientID)
	clientSecret := secrets.Get(secretClientSecret)
	if domain == "" || clientID == "" || clientSecret == "" {
		return nil, ErrMissingSecret
	}

	provider := func(ctx context.Context) (string, error) {
		return r.managementToken(ctx, domain, clientID, clientSecret, cache)
	}
	return mgmt.New(domain, r.httpClient, provider), nil
}

// registerDefaults wires the complete built-in action set.
func (r *Runtime) registerDefaults() {
	r.OnCredentialsExchange("grant-rate-limit", NewGrantRateLimit(r))
	r.OnCredentialsExchange("scope-limit", NewScopeLimit(r))

	r.OnLogin("domain-gate", NewDomainGate(r))
	r.OnLogin("passkey-block", NewPasskeyBlock(r))
	r.OnLogin("jit-signup-block", NewJITSignupBlock(r))
	r.OnLogin("session-limit", NewSessionLimit(r))
	r.OnLogin("scope-reset", NewScopeReset(r))
	r.OnLogin("silent-link", NewSilentLink(r))
	r.OnLogin("interactive-link", NewInteractiveLink(r))
	r.OnLogin("client-link", NewClientLink(r))
	r.OnLogin("email-verification", NewEmailVerification(r))

	r.OnPreRegistration("registration-gate", NewRegistrationGate(r))
	r.OnPreRegistration("crm-enrich", NewCRMEnrich(r))

	// Each exchange action handles only the subject token type it is
	// configured for; the guard runs last and denies types nobody claimed.
	r.OnTokenExchange("switch-client", NewSwitchClientExchange(r))
	r.OnTokenExchange("saml-bearer", NewSAMLBearerExchange(r))
	r.OnTokenExchange("jit-user", NewJITUserExchange(r))
	r.OnTokenExchange("exchange-guard", NewExchangeTypeGuard(r))

	// Outbound dispatchers are only wired when their endpoints are configured;
	// registered without one they could only ever fail the trigger.
	if r.config.PhoneMessage.GatewayBaseURL != "" {
		r.OnPhoneMessage("sms-gateway", NewPhoneMessageGateway(r))
	}
	if r.config.Slack.WebhookSecretName != "" {
		r.OnEmailProvider("email-dispatch", NewEmailDispatch(r))
	}

	r.OnPostChallenge("post-challenge-mfa", NewPostChallengeMFA(r))
	r.OnChangePassword("change-password-notify", NewChangePasswordNotify(r))
}
