package hooks

import "context"

// PasskeyBlockAction denies passkey-only logins on clients that have passkeys
// switched off through client metadata. The session created by the login is
// revoked, keeping refresh tokens so the user's other grants survive.
type PasskeyBlockAction struct {
	rt *Runtime
}

// NewPasskeyBlock describes the newpasskeyblock operation and its observable behavior.
func NewPasskeyBlock(rt *Runtime) *PasskeyBlockAction {
	return &PasskeyBlockAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *PasskeyBlockAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.Passkey

	if event.Client.Metadata[cfg.ClientMetadataKey] != "false" {
		return nil
	}
	if !event.Authentication.UsedMethod("passkey") || event.Authentication.UsedMethod("pwd") {
		return nil
	}

	api.Revoke("passkey login not allowed", RevokeOptions{PreserveRefreshTokens: true})
	api.Deny("invalid_request", cfg.DenyMessage)

	a.rt.metricInc(MetricPasskeyBlocked)
	a.rt.emitAudit(ctx, TriggerPostLogin, "passkey-block", auditEventPasskeyBlocked, false,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

// Continue implements [LoginHandler].
func (a *PasskeyBlockAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}
