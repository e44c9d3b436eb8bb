package hooks

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// CRMEnrichAction looks up the registering user in the CRM by hashed email
// and stores the returned customer id in app metadata. A CRM outage fails the
// registration: accounts are never created without a customer record.
type CRMEnrichAction struct {
	rt *Runtime
}

// NewCRMEnrich describes the newcrmenrich operation and its observable behavior.
func NewCRMEnrich(rt *Runtime) *CRMEnrichAction {
	return &CRMEnrichAction{rt: rt}
}

type crmResponse struct {
	CustomerID string `json:"customer_id"`
}

// Execute implements [PreRegistrationHandler].
func (a *CRMEnrichAction) Execute(ctx context.Context, event *PreRegistrationEvent, api PreRegistrationAPI) error {
	cfg := a.rt.config.CRM
	if cfg.EndpointURL == "" || event.User.Email == "" {
		return nil
	}

	sum := md5.Sum([]byte(strings.ToLower(event.User.Email)))
	body, err := json.Marshal(map[string]string{"email_hash": hex.EncodeToString(sum[:])})
	if err != nil {
		a.deny(ctx, event, api, fmt.Errorf("encode request: %w", err))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.EndpointURL, strings.NewReader(string(body)))
	if err != nil {
		a.deny(ctx, event, api, err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.rt.httpClient.Do(req)
	if err != nil {
		a.deny(ctx, event, api, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.deny(ctx, event, api, fmt.Errorf("crm status %d", resp.StatusCode))
		return nil
	}

	var cr crmResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		a.deny(ctx, event, api, fmt.Errorf("decode response: %w", err))
		return nil
	}
	if cr.CustomerID == "" {
		a.deny(ctx, event, api, fmt.Errorf("crm response missing customer id"))
		return nil
	}

	api.SetAppMetadata(cfg.MetadataKey, cr.CustomerID)

	a.rt.metricInc(MetricCRMEnriched)
	a.rt.emitAudit(ctx, TriggerPreRegistration, "crm-enrich", auditEventCRMEnriched, true,
		event.User.UserID, event.Client.ClientID, "", event.Request.IP, nil, nil)
	return nil
}

func (a *CRMEnrichAction) deny(ctx context.Context, event *PreRegistrationEvent, api PreRegistrationAPI, cause error) {
	api.Deny("invalid_request", "internal error")
	a.rt.metricInc(MetricCRMUnavailable)
	a.rt.emitAudit(ctx, TriggerPreRegistration, "crm-enrich", auditEventCRMUnavailable, false,
		event.User.UserID, event.Client.ClientID, "", event.Request.IP, cause, nil)
}
