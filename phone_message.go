package hooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Secret names consumed by the notification actions.
const (
	secretSMSUser     = "smsGatewayUser"
	secretSMSPassword = "smsGatewayPassword"
)

// PhoneMessageGatewayAction delivers phone messages through an external SMS
// gateway. The country allow list applies to enrollment only: a user who
// already enrolled keeps receiving second-factor codes wherever they travel.
type PhoneMessageGatewayAction struct {
	rt *Runtime
}

// NewPhoneMessageGateway describes the newphonemessagegateway operation and its observable behavior.
func NewPhoneMessageGateway(rt *Runtime) *PhoneMessageGatewayAction {
	return &PhoneMessageGatewayAction{rt: rt}
}

// Execute implements [PhoneMessageHandler].
func (a *PhoneMessageGatewayAction) Execute(ctx context.Context, event *PhoneMessageEvent) error {
	cfg := a.rt.config.PhoneMessage
	if cfg.GatewayBaseURL == "" {
		return fmt.Errorf("%w: gateway not configured", ErrNotificationFailed)
	}

	if event.MessageOptions.Action == "enrollment" && len(cfg.AllowedCountries) > 0 {
		region, err := phoneRegion(event.MessageOptions.Recipient)
		if err != nil || !inList(cfg.AllowedCountries, region) {
			a.rt.metricInc(MetricSMSBlocked)
			a.rt.emitAudit(ctx, TriggerPhoneMessage, "sms-gateway", auditEventSMSBlocked, false,
				event.User.UserID, event.Client.ClientID, "", event.Request.IP, ErrCountryNotAllowed, func() map[string]string {
					return map[string]string{"region": region}
				})
			return fmt.Errorf("%w: region %q", ErrCountryNotAllowed, region)
		}
	}

	form := url.Values{}
	form.Set("to", event.MessageOptions.Recipient)
	form.Set("text", event.MessageOptions.Text)
	form.Set("type", event.MessageOptions.MessageType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(cfg.GatewayBaseURL, "/")+"/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(event.Secrets.Get(secretSMSUser), event.Secrets.Get(secretSMSPassword))

	resp, err := a.rt.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: gateway status %d", ErrNotificationFailed, resp.StatusCode)
	}

	a.rt.metricInc(MetricSMSSent)
	a.rt.emitAudit(ctx, TriggerPhoneMessage, "sms-gateway", auditEventSMSSent, true,
		event.User.UserID, event.Client.ClientID, "", event.Request.IP, nil, nil)
	return nil
}

// PhoneMessageSlackAction forwards phone messages to a Slack channel instead
// of an SMS provider. Useful in tenants where operators relay codes manually.
type PhoneMessageSlackAction struct {
	rt *Runtime
}

// NewPhoneMessageSlack describes the newphonemessageslack operation and its observable behavior.
func NewPhoneMessageSlack(rt *Runtime) *PhoneMessageSlackAction {
	return &PhoneMessageSlackAction{rt: rt}
}

// Execute implements [PhoneMessageHandler].
func (a *PhoneMessageSlackAction) Execute(ctx context.Context, event *PhoneMessageEvent) error {
	webhook := event.Secrets.Get(a.rt.config.Slack.WebhookSecretName)
	if webhook == "" {
		return fmt.Errorf("%w: slack webhook secret missing", ErrNotificationFailed)
	}

	text := fmt.Sprintf("phone message for %s (%s): %s",
		event.MessageOptions.Recipient, event.MessageOptions.Action, event.MessageOptions.Text)
	if err := a.rt.postSlack(ctx, webhook, text); err != nil {
		return err
	}

	a.rt.metricInc(MetricSMSSent)
	a.rt.emitAudit(ctx, TriggerPhoneMessage, "slack-forward", auditEventSMSSent, true,
		event.User.UserID, event.Client.ClientID, "", event.Request.IP, nil, nil)
	return nil
}
