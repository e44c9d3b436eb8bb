package hooks

import (
	"context"
	"log"
)

// JITSignupBlockAction rolls back just-in-time signups: a first federated
// login that created a fresh user is deleted through the management API, the
// session is revoked and the login denied.
type JITSignupBlockAction struct {
	rt *Runtime
}

// NewJITSignupBlock describes the newjitsignupblock operation and its observable behavior.
func NewJITSignupBlock(rt *Runtime) *JITSignupBlockAction {
	return &JITSignupBlockAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *JITSignupBlockAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.JITSignup

	if event.Connection.Strategy == cfg.DatabaseStrategy {
		return nil
	}
	if event.Stats.LoginsCount > 1 || len(event.User.Identities) != 1 {
		return nil
	}

	client, err := a.rt.management(event.Secrets, api)
	if err != nil {
		log.Print("hooks: jit signup rollback unavailable: ", err)
	} else if err := client.DeleteUser(ctx, event.User.UserID); err != nil {
		// The deny below still blocks access; the orphan record is logged for cleanup.
		log.Print("hooks: jit signup user delete failed: ", err)
	}

	api.Revoke("signup not allowed", RevokeOptions{})
	api.Deny("invalid_request", cfg.DenyMessage)

	a.rt.metricInc(MetricJITSignupBlocked)
	a.rt.emitAudit(ctx, TriggerPostLogin, "jit-signup-block", auditEventJITSignupBlocked, false,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

// Continue implements [LoginHandler].
func (a *JITSignupBlockAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}
