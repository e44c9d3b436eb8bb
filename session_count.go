package hooks

import (
	"context"
	"log"
)

// SessionLimitAction caps concurrent sessions per user. Each interactive
// login registers its session with a TTL and counts the live ones; once the
// count reaches the cap the login is denied.
//
// Registry outages admit the login: losing one count is cheaper than locking
// the tenant out.
type SessionLimitAction struct {
	rt *Runtime
}

// NewSessionLimit describes the newsessionlimit operation and its observable behavior.
func NewSessionLimit(rt *Runtime) *SessionLimitAction {
	return &SessionLimitAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *SessionLimitAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.SessionCount

	if a.rt.sessions == nil || cfg.MaxSessions <= 0 {
		return nil
	}
	if !interactiveLogin.MatchString(event.Transaction.Protocol) {
		return nil
	}
	if event.Session.ID == "" {
		return nil
	}

	userID := event.User.UserID

	if err := a.rt.sessions.Register(ctx, userID, event.Session.ID, cfg.SessionLifetime); err != nil {
		log.Print("hooks: session register failed: ", err)
		return nil
	}

	count, err := a.rt.sessions.Count(ctx, userID)
	if err != nil {
		log.Print("hooks: session count failed: ", err)
		return nil
	}

	if count >= cfg.MaxSessions {
		api.Deny("invalid_request", "max sessions reached")
		a.rt.metricInc(MetricSessionLimitExceeded)
		a.rt.emitAudit(ctx, TriggerPostLogin, "session-limit", auditEventSessionLimitExceeded, false,
			userID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, ErrSessionLimitExceeded, nil)
		return nil
	}

	a.rt.metricInc(MetricSessionRegistered)
	a.rt.emitAudit(ctx, TriggerPostLogin, "session-limit", auditEventSessionRegistered, true,
		userID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

// Continue implements [LoginHandler].
func (a *SessionLimitAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}
