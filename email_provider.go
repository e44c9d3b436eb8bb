package hooks

import (
	"context"
	"fmt"
)

// EmailDispatchAction forwards host email notifications to a Slack channel.
// It stands in for a transactional mail provider in tenants that route
// operational notices to chat instead of SMTP.
type EmailDispatchAction struct {
	rt *Runtime
}

// NewEmailDispatch describes the newemaildispatch operation and its observable behavior.
func NewEmailDispatch(rt *Runtime) *EmailDispatchAction {
	return &EmailDispatchAction{rt: rt}
}

// Execute implements [EmailProviderHandler].
func (a *EmailDispatchAction) Execute(ctx context.Context, event *EmailProviderEvent) error {
	webhook := event.Secrets.Get(a.rt.config.Slack.WebhookSecretName)
	if webhook == "" {
		return fmt.Errorf("%w: slack webhook secret missing", ErrNotificationFailed)
	}

	text := fmt.Sprintf("email %s for %s: %s",
		event.Notification.MessageType, event.Notification.To, event.Notification.Text)
	if err := a.rt.postSlack(ctx, webhook, text); err != nil {
		return err
	}

	a.rt.metricInc(MetricEmailDispatched)
	a.rt.emitAudit(ctx, TriggerEmailProvider, "email-dispatch", auditEventEmailDispatched, true,
		event.User.UserID, "", "", "", nil, nil)
	return nil
}
