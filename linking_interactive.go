package hooks

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Transaction metadata keys used to hand state from Execute to Continue.
const (
	metaLinkNonce = "link_nonce"
)

// splitSubject breaks a federated subject ("provider|localid") into its
// provider and provider-local id.
func splitSubject(sub string) (provider, localID string) {
	idx := strings.IndexByte(sub, '|')
	if idx < 0 {
		return "", sub
	}
	return sub[:idx], sub[idx+1:]
}

// InteractiveLinkAction links a freshly authenticated social identity to the
// user's database account by re-authenticating against the trusted connection
// in a nested transaction.
//
// Verification failures in the continuation are hard denials: a link is never
// attempted for a subject that did not prove itself.
type InteractiveLinkAction struct {
	rt *Runtime
}

// NewInteractiveLink describes the newinteractivelink operation and its observable behavior.
func NewInteractiveLink(rt *Runtime) *InteractiveLinkAction {
	return &InteractiveLinkAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *InteractiveLinkAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.Linking

	if !interactiveLogin.MatchString(event.Transaction.Protocol) {
		return nil
	}
	if event.Connection.Strategy == cfg.TrustedStrategy {
		return nil
	}
	if len(event.User.Identities) != 1 {
		return nil
	}

	clientID := event.Secrets.Get(secretClientID)
	if clientID == "" {
		return ErrMissingSecret
	}

	nonce := uuid.NewString()
	api.SetMetadata(metaLinkNonce, nonce)

	domain := event.TenantDomain()
	api.SendUserTo(buildAuthorizeURL(domain, clientID, cfg.TargetConnection, event.User.Email, nonce))

	a.rt.metricInc(MetricLinkRedirect)
	a.rt.emitAudit(ctx, TriggerPostLogin, "interactive-link", auditEventLinkRedirect, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

// Continue implements [LoginHandler].
func (a *InteractiveLinkAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.Linking

	nonce := event.Transaction.Metadata[metaLinkNonce]
	if nonce == "" {
		// Some other action owned the redirect.
		return nil
	}

	domain := event.TenantDomain()
	clientID := event.Secrets.Get(secretClientID)
	clientSecret := event.Secrets.Get(secretClientSecret)
	if clientID == "" || clientSecret == "" {
		return ErrMissingSecret
	}

	code := event.Request.Query["code"]
	if code == "" {
		a.deny(ctx, event, api, "missing authorization code", ErrMissingCode)
		return nil
	}

	idToken, err := a.rt.exchangeCode(ctx, domain, clientID, clientSecret, code)
	if err != nil {
		a.deny(ctx, event, api, "authorization code exchange failed", err)
		return nil
	}

	claims, err := a.rt.verifyIDToken(ctx, domain, clientID, idToken, nonce, api)
	if err != nil {
		a.deny(ctx, event, api, "identity verification failed", err)
		return nil
	}

	if !claims.EmailVerified {
		a.deny(ctx, event, api, "email not verified", ErrEmailNotVerified)
		return nil
	}
	if !strings.HasPrefix(claims.Subject, cfg.AllowedSubjectPrefix) {
		a.deny(ctx, event, api, "invalid sub", ErrSubjectNotAllowed)
		return nil
	}

	identity, ok := event.User.PrimaryIdentity()
	if !ok {
		a.deny(ctx, event, api, "no identity to link", ErrInvalidLinkRequest)
		return nil
	}

	client, err := a.rt.management(event.Secrets, api)
	if err != nil {
		a.deny(ctx, event, api, "account linking unavailable", err)
		return nil
	}
	if err := client.LinkIdentity(ctx, claims.Subject, identity.Provider, identity.UserID); err != nil {
		a.deny(ctx, event, api, "account linking failed", err)
		return nil
	}

	if cfg.MakeLinkedPrimary {
		api.SetPrimaryUser(claims.Subject)
	}

	a.rt.metricInc(MetricLinkSuccess)
	a.rt.emitAudit(ctx, TriggerPostLogin, "interactive-link", auditEventLinkSuccess, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, func() map[string]string {
			return map[string]string{"linked_to": claims.Subject}
		})
	return nil
}

func (a *InteractiveLinkAction) deny(ctx context.Context, event *LoginEvent, api LoginAPI, description string, cause error) {
	api.Deny("invalid_request", description)
	a.rt.metricInc(MetricLinkDenied)
	a.rt.emitAudit(ctx, TriggerPostLogin, "interactive-link", auditEventLinkDenied, false,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, cause, nil)
}
