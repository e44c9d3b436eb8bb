package hooks

import (
	"context"
	"fmt"
	"log"
)

// PostChallengeMFAAction requires a second factor after the password-reset
// challenge. The primary factor is fixed; everything the user already
// enrolled is accepted as an alternative.
type PostChallengeMFAAction struct {
	rt     *Runtime
	factor Factor
}

// NewPostChallengeMFA describes the newpostchallengemfa operation and its observable behavior.
func NewPostChallengeMFA(rt *Runtime) *PostChallengeMFAAction {
	return &PostChallengeMFAAction{
		rt:     rt,
		factor: Factor{Type: "otp"},
	}
}

// WithFactor overrides the primary challenge factor.
func (a *PostChallengeMFAAction) WithFactor(factor Factor) *PostChallengeMFAAction {
	a.factor = factor
	return a
}

// Execute implements [PostChallengeHandler].
func (a *PostChallengeMFAAction) Execute(ctx context.Context, event *PostChallengeEvent, api PostChallengeAPI) error {
	additional := make([]Factor, 0, len(event.User.EnrolledFactors))
	for _, f := range event.User.EnrolledFactors {
		if f.Type == a.factor.Type {
			continue
		}
		additional = append(additional, Factor{Type: f.Type, PreferredMethod: f.PreferredMethod})
	}

	api.ChallengeWith(a.factor, ChallengeOptions{AdditionalFactors: additional})

	a.rt.metricInc(MetricChallengeIssued)
	a.rt.emitAudit(ctx, TriggerPostChallenge, "post-challenge-mfa", auditEventChallengeIssued, true,
		event.User.UserID, event.Client.ClientID, "", event.Request.IP, nil, nil)
	return nil
}

// ChangePasswordNotifyAction revokes registered device credentials after a
// password change and tells the user's operations channel about it. Both
// sides are best-effort: a credential that cannot be revoked is logged and
// skipped, and a missing webhook only drops the notice.
type ChangePasswordNotifyAction struct {
	rt *Runtime
}

// NewChangePasswordNotify describes the newchangepasswordnotify operation and its observable behavior.
func NewChangePasswordNotify(rt *Runtime) *ChangePasswordNotifyAction {
	return &ChangePasswordNotifyAction{rt: rt}
}

// Execute implements [ChangePasswordHandler].
func (a *ChangePasswordNotifyAction) Execute(ctx context.Context, event *ChangePasswordEvent) error {
	revoked := 0
	if client, err := a.rt.management(event.Secrets, nil); err != nil {
		log.Print("hooks: change password: management unavailable: ", err)
	} else if creds, err := client.ListDeviceCredentials(ctx, event.User.UserID); err != nil {
		log.Print("hooks: change password: list credentials failed: ", err)
	} else {
		for _, cred := range creds {
			if err := client.DeleteDeviceCredential(ctx, cred.ID); err != nil {
				log.Print("hooks: change password: revoke credential ", cred.ID, " failed: ", err)
				continue
			}
			revoked++
		}
	}

	if webhook := event.Secrets.Get(a.rt.config.Slack.WebhookSecretName); webhook != "" {
		text := fmt.Sprintf("password changed for %s (%s), %d device credentials revoked",
			event.User.UserID, event.User.Email, revoked)
		if err := a.rt.postSlack(ctx, webhook, text); err != nil {
			log.Print("hooks: change password: notify failed: ", err)
		}
	}

	a.rt.metricInc(MetricPasswordChangeNotice)
	a.rt.emitAudit(ctx, TriggerChangePassword, "change-password-notify", auditEventPasswordChangeNotice, true,
		event.User.UserID, event.Client.ClientID, "", "", nil, func() map[string]string {
			return map[string]string{"revoked_credentials": fmt.Sprint(revoked)}
		})
	return nil
}
