package internaldefs

import (
	hooks "github.com/idplane/hooks"
)

// CounterDef defines a public type used by hooks APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   hooks.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by hooks APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   hooks.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the hooks runtime.
var CounterDefs = []CounterDef{
	{ID: hooks.MetricGrantAllowed, Name: "hooks_grant_allowed_total", Help: "Client credentials grants admitted by the rate limiter."},
	{ID: hooks.MetricGrantRateLimited, Name: "hooks_grant_rate_limited_total", Help: "Client credentials grants denied by the rate limiter."},
	{ID: hooks.MetricGrantFailOpen, Name: "hooks_grant_fail_open_total", Help: "Grants admitted because the rate history store was unavailable."},
	{ID: hooks.MetricTokenCacheHit, Name: "hooks_token_cache_hit_total", Help: "Management token cache hits."},
	{ID: hooks.MetricTokenCacheMiss, Name: "hooks_token_cache_miss_total", Help: "Management token cache misses triggering a grant."},
	{ID: hooks.MetricLinkRedirect, Name: "hooks_link_redirect_total", Help: "Linking flows redirected into a nested transaction."},
	{ID: hooks.MetricLinkSuccess, Name: "hooks_link_success_total", Help: "Completed account links."},
	{ID: hooks.MetricLinkDenied, Name: "hooks_link_denied_total", Help: "Linking flows denied after the continuation returned."},
	{ID: hooks.MetricUnlinkSuccess, Name: "hooks_unlink_success_total", Help: "Completed account unlinks."},
	{ID: hooks.MetricSilentLink, Name: "hooks_silent_link_total", Help: "Accounts merged without user interaction."},
	{ID: hooks.MetricEmailVerifiedClaim, Name: "hooks_email_verified_claim_total", Help: "Email verification claims stamped on issued tokens."},
	{ID: hooks.MetricSessionRegistered, Name: "hooks_session_registered_total", Help: "Login sessions registered in the session counter."},
	{ID: hooks.MetricSessionLimitExceeded, Name: "hooks_session_limit_exceeded_total", Help: "Logins denied for exceeding the concurrent session cap."},
	{ID: hooks.MetricScopeLimited, Name: "hooks_scope_limited_total", Help: "Requested scopes removed by the partner scope limit."},
	{ID: hooks.MetricScopeReset, Name: "hooks_scope_reset_total", Help: "Scope sets replaced wholesale for the configured audience."},
	{ID: hooks.MetricDomainDenied, Name: "hooks_domain_denied_total", Help: "Logins denied by the email domain gates."},
	{ID: hooks.MetricCountryDenied, Name: "hooks_country_denied_total", Help: "Logins or messages denied by the phone country gate."},
	{ID: hooks.MetricPasskeyBlocked, Name: "hooks_passkey_blocked_total", Help: "Passkey logins blocked for flagged clients."},
	{ID: hooks.MetricJITSignupBlocked, Name: "hooks_jit_signup_blocked_total", Help: "Just-in-time signups rolled back and denied."},
	{ID: hooks.MetricExchangeSuccess, Name: "hooks_exchange_success_total", Help: "Custom token exchanges that bound a user."},
	{ID: hooks.MetricExchangeDenied, Name: "hooks_exchange_denied_total", Help: "Custom token exchanges denied."},
	{ID: hooks.MetricSMSSent, Name: "hooks_sms_sent_total", Help: "Phone messages handed to the SMS gateway."},
	{ID: hooks.MetricSMSBlocked, Name: "hooks_sms_blocked_total", Help: "Phone messages suppressed by the country allow list."},
	{ID: hooks.MetricEmailDispatched, Name: "hooks_email_dispatched_total", Help: "Emails handed to the custom provider."},
	{ID: hooks.MetricCRMEnriched, Name: "hooks_crm_enriched_total", Help: "Users enriched with a CRM customer identifier."},
	{ID: hooks.MetricCRMUnavailable, Name: "hooks_crm_unavailable_total", Help: "CRM lookups skipped because the endpoint was unavailable."},
	{ID: hooks.MetricChallengeIssued, Name: "hooks_challenge_issued_total", Help: "Additional authentication challenges issued."},
	{ID: hooks.MetricPasswordChangeNotice, Name: "hooks_password_change_notice_total", Help: "Password change notifications processed."},
	{ID: hooks.MetricHandlerError, Name: "hooks_handler_error_total", Help: "Handler invocations that returned an error."},
}

// HistogramDefs is an exported constant or variable used by the hooks runtime.
var HistogramDefs = []HistogramDef{
	{ID: hooks.MetricHandlerLatency, Name: "hooks_handler_latency_seconds", Help: "Handler invocation latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the hooks runtime.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the hooks runtime.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
