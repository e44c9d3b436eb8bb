package hooks

import (
	"context"
	"fmt"
	"log"
	"regexp"
)

// ScopeLimitAction denies client-credentials grants that request scopes
// outside the allow list, for flagged clients targeting the management
// audience.
type ScopeLimitAction struct {
	rt       *Runtime
	audience *regexp.Regexp
}

// NewScopeLimit describes the newscopelimit operation and its observable behavior.
func NewScopeLimit(rt *Runtime) *ScopeLimitAction {
	pattern := rt.config.Scopes.TargetAudiencePattern
	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Print("hooks: invalid scope audience pattern ", pattern, ": ", err)
		re = nil
	}
	return &ScopeLimitAction{rt: rt, audience: re}
}

// Execute implements [CredentialsExchangeHandler].
func (a *ScopeLimitAction) Execute(ctx context.Context, event *CredentialsExchangeEvent, api CredentialsExchangeAPI) error {
	cfg := a.rt.config.Scopes

	if event.Client.Metadata[cfg.LimitMetadataKey] != "true" {
		return nil
	}
	if a.audience == nil || !a.audience.MatchString(event.ResourceServer.Identifier) {
		return nil
	}

	allowed := make(map[string]bool, len(cfg.AllowedScopes))
	for _, s := range cfg.AllowedScopes {
		allowed[s] = true
	}

	for _, requested := range event.Transaction.RequestedScopes {
		if !allowed[requested] {
			api.Deny("invalid_scope", fmt.Sprintf("scope %s is not permitted for this client", requested))
			a.rt.metricInc(MetricScopeLimited)
			a.rt.emitAudit(ctx, TriggerCredentialsExchange, "scope-limit", auditEventScopeLimited, false,
				"", event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, func() map[string]string {
					return map[string]string{"scope": requested}
				})
			return nil
		}
	}
	return nil
}

// ScopeResetAction replaces the requested scope set wholesale for one
// configured resource server.
type ScopeResetAction struct {
	rt *Runtime
}

// NewScopeReset describes the newscopereset operation and its observable behavior.
func NewScopeReset(rt *Runtime) *ScopeResetAction {
	return &ScopeResetAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *ScopeResetAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.Scopes
	if cfg.ResetResourceServer == "" || event.ResourceServer.Identifier != cfg.ResetResourceServer {
		return nil
	}

	for _, scope := range event.Transaction.RequestedScopes {
		api.RemoveScope(scope)
	}
	for _, scope := range cfg.ReplacementScopes {
		api.AddScope(scope)
	}

	a.rt.metricInc(MetricScopeReset)
	a.rt.emitAudit(ctx, TriggerPostLogin, "scope-reset", auditEventScopeReset, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

// Continue implements [LoginHandler].
func (a *ScopeResetAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}
