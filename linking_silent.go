package hooks

import (
	"context"
	"log"

	"github.com/idplane/hooks/internal/mgmt"
)

// SilentLinkAction merges duplicate accounts sharing a verified email without
// user interaction. The database-backed side becomes the primary; customer
// identifiers from both sides are preserved in the surviving app metadata.
//
// Everything here is best-effort: a management API failure leaves both
// accounts untouched and the login proceeds.
type SilentLinkAction struct {
	rt *Runtime
}

// NewSilentLink describes the newsilentlink operation and its observable behavior.
func NewSilentLink(rt *Runtime) *SilentLinkAction {
	return &SilentLinkAction{rt: rt}
}

// Execute implements [LoginHandler].
func (a *SilentLinkAction) Execute(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	cfg := a.rt.config.Linking

	if !event.User.EmailVerified || event.User.Email == "" {
		return nil
	}
	if len(event.User.Identities) != 1 {
		return nil
	}

	client, err := a.rt.management(event.Secrets, api)
	if err != nil {
		log.Print("hooks: silent link unavailable: ", err)
		return nil
	}

	candidates, err := client.UsersByEmail(ctx, event.User.Email)
	if err != nil {
		log.Print("hooks: silent link email search failed: ", err)
		return nil
	}

	var other *managedUser
	for i := range candidates {
		if candidates[i].UserID == event.User.UserID {
			continue
		}
		if !candidates[i].EmailVerified {
			continue
		}
		other = newManagedUser(&candidates[i])
		break
	}
	if other == nil {
		return nil
	}

	current := &managedUser{
		userID:      event.User.UserID,
		identities:  event.User.Identities,
		appMetadata: event.User.AppMetadata,
	}

	// The account owning a database identity survives as the primary.
	primary, secondary := current, other
	if other.hasDatabaseIdentity() && !current.hasDatabaseIdentity() {
		primary, secondary = other, current
	}

	if merged, ok := mergeCustomerIDs(primary.appMetadata[cfg.CustomerIDKey], secondary.appMetadata[cfg.CustomerIDKey]); ok {
		if err := client.UpdateAppMetadata(ctx, primary.userID, map[string]any{cfg.CustomerIDKey: merged}); err != nil {
			log.Print("hooks: silent link metadata merge failed: ", err)
			return nil
		}
	}

	secondaryIdentity, ok := secondary.loginIdentity()
	if !ok {
		return nil
	}
	if err := client.LinkIdentity(ctx, primary.userID, secondaryIdentity.Provider, secondaryIdentity.UserID); err != nil {
		log.Print("hooks: silent link failed: ", err)
		return nil
	}

	if primary.userID != event.User.UserID {
		api.SetPrimaryUser(primary.userID)
	}

	a.rt.metricInc(MetricSilentLink)
	a.rt.emitAudit(ctx, TriggerPostLogin, "silent-link", auditEventSilentLink, true,
		event.User.UserID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, func() map[string]string {
			return map[string]string{"primary": primary.userID, "secondary": secondary.userID}
		})
	return nil
}

// Continue implements [LoginHandler].
func (a *SilentLinkAction) Continue(ctx context.Context, event *LoginEvent, api LoginAPI) error {
	return nil
}

// managedUser normalizes the event user and management API search results
// into one shape for primary selection.
type managedUser struct {
	userID      string
	identities  []Identity
	appMetadata map[string]any
}

func newManagedUser(u *mgmt.User) *managedUser {
	identities := make([]Identity, 0, len(u.Identities))
	for _, id := range u.Identities {
		identities = append(identities, Identity{
			Provider:   id.Provider,
			Connection: id.Connection,
			UserID:     id.UserID,
			IsSocial:   id.IsSocial,
		})
	}
	return &managedUser{
		userID:      u.UserID,
		identities:  identities,
		appMetadata: u.AppMetadata,
	}
}

func (m *managedUser) hasDatabaseIdentity() bool {
	for _, id := range m.identities {
		if !id.IsSocial {
			return true
		}
	}
	return false
}

func (m *managedUser) loginIdentity() (Identity, bool) {
	if len(m.identities) == 0 {
		return Identity{}, false
	}
	return m.identities[0], true
}

// mergeCustomerIDs combines customer ids from both accounts: both present
// yields an array, one present yields the scalar, none reports no write.
func mergeCustomerIDs(primary, secondary any) (any, bool) {
	switch {
	case primary != nil && secondary != nil:
		return flattenCustomerIDs(primary, secondary), true
	case primary != nil:
		return primary, true
	case secondary != nil:
		return secondary, true
	default:
		return nil, false
	}
}

func flattenCustomerIDs(values ...any) []any {
	var out []any
	for _, v := range values {
		if list, ok := v.([]any); ok {
			out = append(out, list...)
			continue
		}
		out = append(out, v)
	}
	return out
}
