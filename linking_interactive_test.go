package hooks

import (
	"context"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func interactiveLinkEvent(ft *fakeTenant) *LoginEvent {
	return &LoginEvent{
		User: User{
			UserID: "google-oauth2|g-1",
			Email:  "alice@example.com",
			Identities: []Identity{
				{Provider: "google-oauth2", UserID: "g-1", IsSocial: true},
			},
		},
		Client:      Client{ClientID: "spa"},
		Connection:  Connection{Strategy: "google-oauth2"},
		Transaction: Transaction{ID: "tx-1", Protocol: "oidc-basic-profile"},
		Request:     Request{IP: "203.0.113.9", Query: map[string]string{}},
		Secrets:     ft.secrets(),
	}
}

func TestInteractiveLinkExecuteRedirects(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	event := interactiveLinkEvent(ft)
	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if api.redirectURL == "" {
		t.Fatal("no redirect issued")
	}
	if !strings.Contains(api.redirectURL, "prompt=login") {
		t.Fatalf("redirect %q misses prompt=login", api.redirectURL)
	}
	if !strings.Contains(api.redirectURL, "connection=Users") {
		t.Fatalf("redirect %q misses the target connection", api.redirectURL)
	}
	nonce := api.transactionMeta["link_nonce"]
	if nonce == "" {
		t.Fatal("no nonce planted in transaction metadata")
	}
	if !strings.Contains(api.redirectURL, "nonce="+nonce) {
		t.Fatalf("redirect %q does not carry the planted nonce", api.redirectURL)
	}
}

func TestInteractiveLinkExecuteSkipsTrustedStrategy(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	event := interactiveLinkEvent(ft)
	event.Connection.Strategy = "auth0"

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.redirectURL != "" {
		t.Fatal("trusted-strategy login was redirected")
	}
}

func TestInteractiveLinkContinueLinksVerifiedSubject(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	ft.setIDClaims(jwt.MapClaims{
		"sub":            "auth0|primary1",
		"nonce":          "nonce-1",
		"email_verified": true,
	})

	event := interactiveLinkEvent(ft)
	event.Transaction.Metadata = map[string]string{"link_nonce": "nonce-1"}
	event.Request.Query["code"] = "code-1"

	api := newRecorderAPI()
	if err := action.Continue(context.Background(), event, api); err != nil {
		t.Fatalf("continue: %v", err)
	}

	if api.denied {
		t.Fatalf("continuation denied: %s", api.denyDescription)
	}
	if len(ft.linkCalls) != 1 {
		t.Fatalf("link calls = %v, want one", ft.linkCalls)
	}
	if !strings.Contains(ft.linkCalls[0], "auth0%7Cprimary1") {
		t.Fatalf("link targeted %q, want the verified subject", ft.linkCalls[0])
	}
	if api.primaryUserID != "auth0|primary1" {
		t.Fatalf("primary user = %q, want the verified subject", api.primaryUserID)
	}
}

func TestInteractiveLinkContinueRejectsNonceMismatch(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	ft.setIDClaims(jwt.MapClaims{
		"sub":            "auth0|primary1",
		"nonce":          "some-other-nonce",
		"email_verified": true,
	})

	event := interactiveLinkEvent(ft)
	event.Transaction.Metadata = map[string]string{"link_nonce": "nonce-1"}
	event.Request.Query["code"] = "code-1"

	api := newRecorderAPI()
	if err := action.Continue(context.Background(), event, api); err != nil {
		t.Fatalf("continue: %v", err)
	}

	if !api.denied {
		t.Fatal("nonce mismatch was not denied")
	}
	if len(ft.linkCalls) != 0 {
		t.Fatalf("link was attempted despite nonce mismatch: %v", ft.linkCalls)
	}
}

func TestInteractiveLinkContinueRejectsForeignSubject(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	ft.setIDClaims(jwt.MapClaims{
		"sub":            "google-oauth2|other",
		"nonce":          "nonce-1",
		"email_verified": true,
	})

	event := interactiveLinkEvent(ft)
	event.Transaction.Metadata = map[string]string{"link_nonce": "nonce-1"}
	event.Request.Query["code"] = "code-1"

	api := newRecorderAPI()
	if err := action.Continue(context.Background(), event, api); err != nil {
		t.Fatalf("continue: %v", err)
	}

	if !api.denied {
		t.Fatal("non-database subject was not denied")
	}
	if api.denyDescription != "invalid sub" {
		t.Fatalf("deny description = %q, want invalid sub", api.denyDescription)
	}
	if len(ft.linkCalls) != 0 {
		t.Fatalf("link was attempted for a foreign subject: %v", ft.linkCalls)
	}
}

func TestInteractiveLinkContinueRequiresVerifiedEmail(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	ft.setIDClaims(jwt.MapClaims{
		"sub":   "auth0|primary1",
		"nonce": "nonce-1",
	})

	event := interactiveLinkEvent(ft)
	event.Transaction.Metadata = map[string]string{"link_nonce": "nonce-1"}
	event.Request.Query["code"] = "code-1"

	api := newRecorderAPI()
	if err := action.Continue(context.Background(), event, api); err != nil {
		t.Fatalf("continue: %v", err)
	}

	if !api.denied {
		t.Fatal("unverified email was not denied")
	}
	if len(ft.linkCalls) != 0 {
		t.Fatalf("link was attempted without a verified email: %v", ft.linkCalls)
	}
}

func TestInteractiveLinkContinueSkipsWithoutMarker(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	event := interactiveLinkEvent(ft)

	api := newRecorderAPI()
	if err := action.Continue(context.Background(), event, api); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if api.denied || ft.exchangeCalls != 0 {
		t.Fatal("continuation without the metadata marker was not a no-op")
	}
}

func TestInteractiveLinkContinueDeniesMissingCode(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewInteractiveLink(rt)

	event := interactiveLinkEvent(ft)
	event.Transaction.Metadata = map[string]string{"link_nonce": "nonce-1"}

	api := newRecorderAPI()
	if err := action.Continue(context.Background(), event, api); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if !api.denied {
		t.Fatal("missing authorization code was not denied")
	}
}
