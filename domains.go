package hooks

import (
	"context"
	"log"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func inList(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), value) {
			return true
		}
	}
	return false
}

// RegistrationGateAction enforces the signup gates: email domain lists, the
// flagged-client block, and the SMS country allow list for passwordless
// signups.
type RegistrationGateAction struct {
	rt *Runtime
}

// NewRegistrationGate describes the newregistrationgate operation and its observable behavior.
func NewRegistrationGate(rt *Runtime) *RegistrationGateAction {
	return &RegistrationGateAction{rt: rt}
}

// Execute implements [PreRegistrationHandler].
func (a *RegistrationGateAction) Execute(ctx context.Context, event *PreRegistrationEvent, api PreRegistrationAPI) error {
	cfg := a.rt.config.Domains

	if event.Client.Metadata[cfg.DenyClientMetadata] == "true" {
		a.deny(ctx, event, api, "signups are not enabled for this application")
		return nil
	}

	if domain := emailDomain(event.User.Email); domain != "" {
		if inList(cfg.DenyList, domain) {
			a.deny(ctx, event, api, "email domain is not allowed")
			return nil
		}
		if len(cfg.AllowList) > 0 && !inList(cfg.AllowList, domain) {
			a.deny(ctx, event, api, "email domain is not allowed")
			return nil
		}
	}

	if event.Connection.Strategy == cfg.PasswordlessStrategy && event.User.PhoneNumber != "" && len(cfg.AllowedSMSCountries) > 0 {
		region, err := phoneRegion(event.User.PhoneNumber)
		if err != nil || !inList(cfg.AllowedSMSCountries, region) {
			api.Deny("invalid_request", "phone number country is not supported")
			a.rt.metricInc(MetricCountryDenied)
			a.rt.emitAudit(ctx, TriggerPreRegistration, "registration-gate", auditEventCountryDenied, false,
				event.User.UserID, event.Client.ClientID, "", event.Request.IP, ErrCountryNotAllowed, nil)
			return nil
		}
	}

	return nil
}

func (a *RegistrationGateAction) deny(ctx context.Context, event *PreRegistrationEvent, api PreRegistrationAPI, description string) {
	api.Deny("invalid_request", description)
	a.rt.metricInc(MetricDomainDenied)
	a.rt.emitAudit(ctx, TriggerPreRegistration, "registration-gate", auditEventDomainDenied, false,
		event.User.UserID, event.Client.ClientID, "", event.Request.IP, nil, nil)
}

// phoneRegion resolves the ISO region for an E.164 number.
func phoneRegion(number string) (string, error) {
	parsed, err := phonenumbers.Parse(number, "")
	if err != nil {
		return "", err
	}
	return phonenumbers.GetRegionCodeForNumber(parsed), nil
}

// DomainGateAction enforces per-organization custom domain lists and the
// tenant-wide email domain lists at login time.
//
// When an organization sets both allow_domains and deny_domains the
// configuration is contradictory: the conflict is logged and the deny list is
// checked first.
type DomainGateAction struct {
	rt *Runtime
}

// NewDomainGate describes the newdomaingate operation and its observable behavior.
func NewDomainGate(rt *Runtime) *DomainGateAction {
	return &DomainGateAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *DomainGateAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.Domains

	if domain := emailDomain(event.User.Email); domain != "" {
		if inList(cfg.DenyList, domain) {
			a.deny(ctx, event, api, "email domain is not allowed")
			return nil
		}
		if len(cfg.AllowList) > 0 && !inList(cfg.AllowList, domain) {
			a.deny(ctx, event, api, "email domain is not allowed")
			return nil
		}
	}

	if event.Organization == nil {
		return nil
	}

	denyDomains := splitDomainList(event.Organization.Metadata["deny_domains"])
	allowDomains := splitDomainList(event.Organization.Metadata["allow_domains"])
	if len(denyDomains) > 0 && len(allowDomains) > 0 {
		log.Print("hooks: organization ", event.Organization.ID, " sets both allow_domains and deny_domains")
	}

	hostname := strings.ToLower(event.Request.Hostname)
	if len(denyDomains) > 0 && inList(denyDomains, hostname) {
		a.deny(ctx, event, api, "login from this domain is not allowed")
		return nil
	}
	if len(allowDomains) > 0 && !inList(allowDomains, hostname) {
		a.deny(ctx, event, api, "login from this domain is not allowed")
		return nil
	}

	return nil
}

// Continue implements [LoginHandler].
func (a *DomainGateAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}

func (a *DomainGateAction) deny(ctx context.Context, event *LoginEvent, api LoginAPI, description string) {
	api.Deny("invalid_request", description)
	a.rt.metricInc(MetricDomainDenied)
	a.rt.emitAudit(ctx, TriggerPostLogin, "domain-gate", auditEventDomainDenied, false,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, nil)
}

func splitDomainList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
