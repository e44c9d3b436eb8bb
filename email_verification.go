package hooks

import (
	"context"
	"log"
	"strings"
)

const metaEmailVerifyPending = "everify_pending"

// EmailVerificationAction proves mailbox ownership for unverified database
// users through a nested passwordless transaction and records the result on
// the user record and the issued token.
//
// The nested proof binds to the outer login through the transaction id, which
// doubles as the id token nonce.
type EmailVerificationAction struct {
	rt *Runtime
}

// NewEmailVerification describes the newemailverification operation and its observable behavior.
func NewEmailVerification(rt *Runtime) *EmailVerificationAction {
	return &EmailVerificationAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *EmailVerificationAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.EmailVerification

	if event.User.EmailVerified {
		return nil
	}
	if !interactiveLogin.MatchString(event.Transaction.Protocol) {
		return nil
	}
	if event.Connection.Strategy != a.rt.config.JITSignup.DatabaseStrategy {
		return nil
	}

	clientID := event.Secrets.Get(secretClientID)
	if clientID == "" {
		return ErrMissingSecret
	}

	api.SetMetadata(metaEmailVerifyPending, "1")
	api.SendUserTo(buildAuthorizeURL(event.TenantDomain(), clientID, cfg.Connection, event.User.Email, event.Transaction.ID))
	return nil
}

// Continue implements [LoginHandler].
func (a *EmailVerificationAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.EmailVerification

	if event.Transaction.Metadata[metaEmailVerifyPending] == "" {
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

	claims, err := a.rt.verifyIDToken(ctx, domain, clientID, idToken, event.Transaction.ID, api)
	if err != nil {
		a.deny(ctx, event, api, "identity verification failed", err)
		return nil
	}

	if !claims.EmailVerified {
		// The nested login completed without proving the mailbox; leave the
		// user unverified rather than failing the outer login.
		log.Print("hooks: email verification: nested login did not verify email for ", event.User.UserID)
		return nil
	}
	if !strings.HasPrefix(event.User.UserID, a.rt.config.Linking.AllowedSubjectPrefix) {
		a.deny(ctx, event, api, "invalid sub", ErrSubjectNotAllowed)
		return nil
	}

	if client, err := a.rt.management(event.Secrets, api); err != nil {
		log.Print("hooks: email verification: management unavailable: ", err)
	} else if err := client.MarkEmailVerified(ctx, event.User.UserID); err != nil {
		log.Print("hooks: email verification: mark verified failed: ", err)
	}

	api.SetCustomClaim(cfg.ClaimName, true)

	a.rt.metricInc(MetricEmailVerifiedClaim)
	a.rt.emitAudit(ctx, TriggerPostLogin, "email-verification", auditEventEmailVerified, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

func (a *EmailVerificationAction) deny(ctx context.Context, event *LoginEvent, api LoginAPI, description string, cause error) {
	api.Deny("invalid_request", description)
	a.rt.emitAudit(ctx, TriggerPostLogin, "email-verification", auditEventEmailVerified, false,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, cause, nil)
}
