package hooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

const metaClientLinkNonce = "clink_nonce"

// linkNonce derives a deterministic nonce from the user and the request
// origin, so the continuation can re-derive it without shared storage.
func linkNonce(userID, ip string) string {
	sum := sha256.Sum256([]byte(userID + ip))
	return hex.EncodeToString(sum[:])[:32]
}

// ClientLinkAction serves link and unlink requests initiated by a first-party
// application through dedicated scopes on the account resource server. The
// caller proves it acts for the current user with an id_token_hint; linking
// additionally re-authenticates the target identity in a nested transaction.
type ClientLinkAction struct {
	rt *Runtime
}

// NewClientLink describes the newclientlink operation and its observable behavior.
func NewClientLink(rt *Runtime) *ClientLinkAction {
	return &ClientLinkAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *ClientLinkAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.Linking

	if event.ResourceServer.Identifier != cfg.ResourceServer {
		return nil
	}

	wantLink := event.Transaction.HasScope(cfg.LinkScope)
	wantUnlink := event.Transaction.HasScope(cfg.UnlinkScope)
	switch {
	case !wantLink && !wantUnlink:
		return nil
	case wantLink && wantUnlink:
		a.deny(ctx, event, api, "link and unlink scopes are mutually exclusive", ErrInvalidLinkRequest)
		return nil
	}

	hint := event.Request.Query["id_token_hint"]
	if hint == "" {
		a.deny(ctx, event, api, "id_token_hint required", ErrInvalidLinkRequest)
		return nil
	}

	domain := event.TenantDomain()
	claims, err := a.rt.verifyIDToken(ctx, domain, event.Client.ClientID, hint, "", api)
	if err != nil {
		a.deny(ctx, event, api, "id_token_hint verification failed", err)
		return nil
	}
	if claims.Subject != event.User.UserID {
		a.deny(ctx, event, api, "id_token_hint subject mismatch", ErrSubjectMismatch)
		return nil
	}

	// Step up before any account surgery.
	if len(event.User.EnrolledFactors) > 0 && !event.Authentication.UsedMethod("mfa") {
		factors := make([]Factor, 0, len(event.User.EnrolledFactors))
		for _, f := range event.User.EnrolledFactors {
			factors = append(factors, Factor{Type: f.Type, PreferredMethod: f.PreferredMethod})
		}
		api.ChallengeWithAny(factors)
		a.rt.metricInc(MetricChallengeIssued)
		a.rt.emitAudit(ctx, TriggerPostLogin, "client-link", auditEventChallengeIssued, true,
			event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
		return nil
	}

	connection := event.Request.Query["requested_connection"]
	if connection == "" {
		a.deny(ctx, event, api, "requested_connection required", ErrInvalidLinkRequest)
		return nil
	}

	if wantUnlink {
		a.unlink(ctx, event, api, connection)
		return nil
	}

	nonce := linkNonce(event.User.UserID, event.Request.IP)
	api.SetMetadata(metaClientLinkNonce, nonce)
	api.SendUserTo(buildAuthorizeURL(domain, event.Client.ClientID, connection, event.Request.Query["login_hint"], nonce))

	a.rt.metricInc(MetricLinkRedirect)
	a.rt.emitAudit(ctx, TriggerPostLogin, "client-link", auditEventLinkRedirect, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

func (a *ClientLinkAction) unlink(ctx context.Context, event *LoginEvent, api LoginAPI, connection string) {
	var matches []Identity
	if len(event.User.Identities) > 1 {
		// The first identity is the login identity; it cannot be unlinked
		// from itself.
		for _, identity := range event.User.Identities[1:] {
			if identity.Connection == connection {
				matches = append(matches, identity)
			}
		}
	}
	if len(matches) != 1 {
		a.deny(ctx, event, api, "requested connection does not match exactly one linked identity", ErrInvalidLinkRequest)
		return
	}

	client, err := a.rt.management(event.Secrets, api)
	if err != nil {
		a.deny(ctx, event, api, "account unlinking unavailable", err)
		return
	}
	if err := client.UnlinkIdentity(ctx, event.User.UserID, matches[0].Provider, matches[0].UserID); err != nil {
		a.deny(ctx, event, api, "account unlinking failed", err)
		return
	}

	a.rt.metricInc(MetricUnlinkSuccess)
	a.rt.emitAudit(ctx, TriggerPostLogin, "client-link", auditEventUnlinkSuccess, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, func() map[string]string {
			return map[string]string{"connection": connection}
		})
}

// Continue implements [LoginHandler].
func (a *ClientLinkAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	if event.Transaction.Metadata[metaClientLinkNonce] == "" {
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

	nonce := linkNonce(event.User.UserID, event.Request.IP)
	claims, err := a.rt.verifyIDToken(ctx, domain, clientID, idToken, nonce, api)
	if err != nil {
		a.deny(ctx, event, api, "identity verification failed", err)
		return nil
	}

	if claims.Subject == event.User.UserID {
		// Idempotent: the target is already this account.
		a.rt.emitAudit(ctx, TriggerPostLogin, "client-link", auditEventLinkSuccess, true,
			event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, func() map[string]string {
				return map[string]string{"already_linked": "true"}
			})
		return nil
	}

	if !claims.EmailVerified {
		a.deny(ctx, event, api, "email not verified", ErrEmailNotVerified)
		return nil
	}

	provider, localID := splitSubject(claims.Subject)
	if provider == "" {
		a.deny(ctx, event, api, "invalid sub", ErrSubjectNotAllowed)
		return nil
	}

	client, err := a.rt.management(event.Secrets, api)
	if err != nil {
		a.deny(ctx, event, api, "account linking unavailable", err)
		return nil
	}
	if err := client.LinkIdentity(ctx, event.User.UserID, provider, localID); err != nil {
		a.deny(ctx, event, api, "account linking failed", err)
		return nil
	}

	a.rt.metricInc(MetricLinkSuccess)
	a.rt.emitAudit(ctx, TriggerPostLogin, "client-link", auditEventLinkSuccess, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, func() map[string]string {
			return map[string]string{"linked": claims.Subject}
		})
	return nil
}

func (a *ClientLinkAction) deny(ctx context.Context, event *LoginEvent, api LoginAPI, description string, cause error) {
	api.Deny("invalid_request", description)
	a.rt.metricInc(MetricLinkDenied)
	a.rt.emitAudit(ctx, TriggerPostLogin, "client-link", auditEventLinkDenied, false,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, cause, nil)
}
