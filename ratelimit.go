package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"dario.cat/mergo"
	"github.com/idplane/hooks/internal/stores"
)

// rateLimitMetadataKey is the client metadata key carrying a per-client
// policy override as JSON.
const rateLimitMetadataKey = "rate_limits"

// ratePolicyWire is the metadata JSON shape. Enabled is a pointer so a client
// can switch the limiter off explicitly.
type ratePolicyWire struct {
	Enabled           *bool `json:"enabled"`
	MaxGrants         int   `json:"rate_limit_per_time_period"`
	TimePeriodSeconds int   `json:"time_period_seconds"`
}

// GrantRateLimitAction throttles client-credentials grants with a sliding
// window over persisted grant timestamps.
//
// Failure policy: a history read outage denies with server_error; a persist
// failure admits the grant (fail open) so a degraded store never locks every
// client out.
type GrantRateLimitAction struct {
	rt *Runtime
}

// NewGrantRateLimit describes the newgrantratelimit operation and its observable behavior.
func NewGrantRateLimit(rt *Runtime) *GrantRateLimitAction {
	return &GrantRateLimitAction{rt: rt}
}

// Execute implements [CredentialsExchangeHandler].
func (a *GrantRateLimitAction) Execute(ctx context.Context, event *CredentialsExchangeEvent, api CredentialsExchangeAPI) error {
	if a.rt.history == nil {
		return nil
	}

	policy := a.policyFor(&event.Client)
	if !policy.Enabled {
		return nil
	}

	clientID := event.Client.ClientID
	now := time.Now()

	history, err := a.rt.history.Load(ctx, clientID)
	if err != nil {
		if errors.Is(err, stores.ErrHistoryCorrupt) {
			// Unreadable record: start a fresh window rather than lock the client out.
			log.Print("hooks: grant history corrupt for client ", clientID, ", resetting")
			history = nil
		} else {
			api.Deny("server_error", "rate limit check unavailable")
			a.rt.emitAudit(ctx, TriggerCredentialsExchange, "grant-rate-limit", auditEventGrantRateLimited, false,
				"", clientID, event.Transaction.ID, event.Request.IP, ErrRateStoreUnavailable, nil)
			return nil
		}
	}

	windowStart := now.Add(-policy.TimePeriod)
	recent := history[:0:0]
	for _, stamp := range history {
		if stamp.After(windowStart) {
			recent = append(recent, stamp)
		}
	}
	recent = append(recent, now)

	if err := a.rt.history.Save(ctx, clientID, recent, policy.TimePeriod); err != nil {
		// Fail open: a window that cannot be persisted cannot support a
		// denial either.
		log.Print("hooks: grant history persist failed for client ", clientID, ": ", err)
		a.rt.metricInc(MetricGrantFailOpen)
		a.rt.emitAudit(ctx, TriggerCredentialsExchange, "grant-rate-limit", auditEventGrantFailOpen, true,
			"", clientID, event.Transaction.ID, event.Request.IP, nil, nil)
		return nil
	}

	if len(recent) > policy.MaxGrants {
		api.Deny("invalid_request", fmt.Sprintf(
			"client %s exceeded %d token grants per %s", clientID, policy.MaxGrants, policy.TimePeriod))
		a.rt.metricInc(MetricGrantRateLimited)
		a.rt.emitAudit(ctx, TriggerCredentialsExchange, "grant-rate-limit", auditEventGrantRateLimited, false,
			"", clientID, event.Transaction.ID, event.Request.IP, ErrGrantRateLimited, func() map[string]string {
				return map[string]string{
					"max_grants": fmt.Sprint(policy.MaxGrants),
					"window":     policy.TimePeriod.String(),
				}
			})
		return nil
	}

	a.rt.metricInc(MetricGrantAllowed)
	a.rt.emitAudit(ctx, TriggerCredentialsExchange, "grant-rate-limit", auditEventGrantAllowed, true,
		"", clientID, event.Transaction.ID, event.Request.IP, nil, nil)
	return nil
}

// policyFor merges the client metadata override over the configured default.
// A malformed override falls back to defaults.
func (a *GrantRateLimitAction) policyFor(client *Client) RateLimitPolicy {
	def := a.rt.config.RateLimit.Default

	raw, ok := client.Metadata[rateLimitMetadataKey]
	if !ok || raw == "" {
		return def
	}

	enabled := def.Enabled
	base := ratePolicyWire{
		Enabled:           &enabled,
		MaxGrants:         def.MaxGrants,
		TimePeriodSeconds: int(def.TimePeriod / time.Second),
	}

	var override ratePolicyWire
	if err := json.Unmarshal([]byte(raw), &override); err != nil {
		log.Print("hooks: unparsable rate_limits metadata for client ", client.ClientID, ": ", err)
		return def
	}

	if err := mergo.Merge(&base, override, mergo.WithOverride); err != nil {
		log.Print("hooks: rate_limits merge failed for client ", client.ClientID, ": ", err)
		return def
	}

	merged := RateLimitPolicy{
		Enabled:    base.Enabled == nil || *base.Enabled,
		MaxGrants:  base.MaxGrants,
		TimePeriod: time.Duration(base.TimePeriodSeconds) * time.Second,
	}
	if merged.MaxGrants <= 0 || merged.TimePeriod <= 0 {
		return def
	}
	return merged
}
