package hooks

import (
	"context"
	"fmt"
)

// SAMLBearerExchangeAction accepts a base64 SAML assertion as the subject
// token, verifies its enveloped signature against the pinned issuer
// certificate, and binds the transaction to the asserted NameID.
//
// Other subject token types are passed through for the sibling exchange
// actions; [ExchangeTypeGuardAction] settles types nobody claims.
type SAMLBearerExchangeAction struct {
	rt *Runtime
}

// NewSAMLBearerExchange describes the newsamlbearerexchange operation and its observable behavior.
func NewSAMLBearerExchange(rt *Runtime) *SAMLBearerExchangeAction {
	return &SAMLBearerExchangeAction{rt: rt}
}

// Execute implements [TokenExchangeHandler].
func (a *SAMLBearerExchangeAction) Execute(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI) error {
	if event.Transaction.SubjectTokenType != a.rt.config.SAML.SubjectTokenType {
		return nil
	}
	if a.rt.samlVerifier == nil {
		a.deny(ctx, event, api, "saml exchange not configured", ErrRuntimeNotReady)
		return nil
	}

	assertion, err := a.rt.samlVerifier.Verify(event.Transaction.SubjectToken)
	if err != nil {
		a.deny(ctx, event, api, "assertion verification failed", fmt.Errorf("%w: %v", ErrAssertionInvalid, err))
		return nil
	}

	api.SetUserByID(assertion.NameID)

	a.rt.metricInc(MetricExchangeSuccess)
	a.rt.emitAudit(ctx, TriggerTokenExchange, "saml-bearer", auditEventExchangeSuccess, true,
		assertion.NameID, event.Client.ClientID, event.Transaction.ID, event.Request.IP, nil, func() map[string]string {
			return map[string]string{"issuer": assertion.Issuer}
		})
	return nil
}

func (a *SAMLBearerExchangeAction) deny(ctx context.Context, event *TokenExchangeEvent, api TokenExchangeAPI, description string, cause error) {
	api.Deny("invalid_request", description)
	a.rt.metricInc(MetricExchangeDenied)
	a.rt.emitAudit(ctx, TriggerTokenExchange, "saml-bearer", auditEventExchangeDenied, false,
		"", event.Client.ClientID, event.Transaction.ID, event.Request.IP, cause, nil)
}
