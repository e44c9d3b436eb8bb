package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func exchangeEvent(ft *fakeTenant, tokenType, token string) *TokenExchangeEvent {
	return &TokenExchangeEvent{
		Client: Client{ClientID: "exchange-client"},
		Transaction: Transaction{
			ID:               "tx-x1",
			SubjectTokenType: tokenType,
			SubjectToken:     token,
		},
		Request: Request{IP: "203.0.113.9"},
		Secrets: ft.secrets(),
	}
}

func (ft *fakeTenant) signAccessToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	merged := jwt.MapClaims{
		"iss": "https://" + ft.domain() + "/",
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	}
	for k, v := range claims {
		merged[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, merged)
	token.Header["kid"] = ft.kid
	raw, err := token.SignedString(ft.key)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return raw
}

func TestSwitchClientExchangeBindsSubject(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewSwitchClientExchange(rt)

	token := ft.signAccessToken(t, jwt.MapClaims{"sub": "auth0|u1"})
	event := exchangeEvent(ft, "urn:ietf:params:oauth:token-type:access_token", token)

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if api.denied {
		t.Fatalf("exchange denied: %s", api.denyDescription)
	}
	if api.setUserID != "auth0|u1" {
		t.Fatalf("bound user = %q, want the token subject", api.setUserID)
	}
}

func TestSwitchClientExchangeIgnoresForeignTokenType(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewSwitchClientExchange(rt)

	event := exchangeEvent(ft, "urn:ietf:params:oauth:token-type:id_token", "whatever")

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatal("a token type owned by another action was denied instead of passed through")
	}
	if api.setUserID != "" {
		t.Fatal("user bound for a foreign token type")
	}
}

func TestSwitchClientExchangeRejectsForeignIssuer(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewSwitchClientExchange(rt)

	token := ft.signAccessToken(t, jwt.MapClaims{
		"sub": "auth0|u1",
		"iss": "https://evil.example.com/",
	})
	event := exchangeEvent(ft, "urn:ietf:params:oauth:token-type:access_token", token)

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !api.denied {
		t.Fatal("foreign issuer was not denied")
	}
}

func TestSwitchClientExchangeRejectsExpiredToken(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewSwitchClientExchange(rt)

	token := ft.signAccessToken(t, jwt.MapClaims{
		"sub": "auth0|u1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	event := exchangeEvent(ft, "urn:ietf:params:oauth:token-type:access_token", token)

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !api.denied {
		t.Fatal("expired token was not denied")
	}
}

// jitRuntime points the JIT exchange at the upstream token type the tests
// mint.
func jitRuntime(t *testing.T, ft *fakeTenant) *Runtime {
	t.Helper()
	return newTenantRuntime(t, ft, func(cfg *Config) {
		cfg.TokenExchange.JITSubjectTokenType = "urn:upstream:token"
	})
}

func TestJITUserExchangeProvisionsFromClaims(t *testing.T) {
	ft := newFakeTenant(t)
	rt := jitRuntime(t, ft)
	action := NewJITUserExchange(rt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            "upstream-42",
		"email":          "bob@upstream.example",
		"email_verified": true,
		"name":           "Bob Upstream",
	})
	raw, err := token.SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	event := exchangeEvent(ft, "urn:upstream:token", raw)

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if api.denied {
		t.Fatalf("exchange denied: %s", api.denyDescription)
	}
	if api.setUserConnection != "Username-Password-Authentication" {
		t.Fatalf("connection = %q", api.setUserConnection)
	}
	if api.setUserProfile.UserID != "upstream-42" || api.setUserProfile.Email != "bob@upstream.example" {
		t.Fatalf("profile = %+v", api.setUserProfile)
	}
	if api.setUserOptions.CreationBehavior != "create_if_not_exists" {
		t.Fatalf("creation behavior = %q", api.setUserOptions.CreationBehavior)
	}
}

func TestJITUserExchangeIgnoresForeignTokenType(t *testing.T) {
	ft := newFakeTenant(t)
	rt := jitRuntime(t, ft)
	action := NewJITUserExchange(rt)

	event := exchangeEvent(ft, "urn:ietf:params:oauth:token-type:access_token", "not.a.jwt.at.all")

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatal("a token type owned by another action was denied instead of passed through")
	}
	if api.setUserConnection != "" {
		t.Fatal("user provisioned for a foreign token type")
	}
}

func TestJITUserExchangeRejectsMalformedToken(t *testing.T) {
	ft := newFakeTenant(t)
	rt := jitRuntime(t, ft)
	action := NewJITUserExchange(rt)

	event := exchangeEvent(ft, "urn:upstream:token", "not.a.jwt.at.all")

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !api.denied {
		t.Fatal("malformed subject token was not denied")
	}
}

func TestJITUserExchangeRequiresSubject(t *testing.T) {
	ft := newFakeTenant(t)
	rt := jitRuntime(t, ft)
	action := NewJITUserExchange(rt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "nobody@example.com"})
	raw, err := token.SignedString([]byte("upstream-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), exchangeEvent(ft, "urn:upstream:token", raw), api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !api.denied {
		t.Fatal("subject-less token was not denied")
	}
}

func TestExchangeTypeGuardDeniesUnclaimedType(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewExchangeTypeGuard(rt)

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), exchangeEvent(ft, "urn:example:mystery", "whatever"), api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !api.denied {
		t.Fatal("unclaimed subject token type was not denied")
	}
	if rt.MetricsSnapshot().Counters[MetricExchangeDenied] != 1 {
		t.Fatal("denial was not counted")
	}
}

func TestExchangeTypeGuardPassesConfiguredTypes(t *testing.T) {
	ft := newFakeTenant(t)
	rt := newTenantRuntime(t, ft, nil)
	action := NewExchangeTypeGuard(rt)

	for _, tokenType := range []string{
		"urn:ietf:params:oauth:token-type:access_token",
		"urn:ietf:params:oauth:token-type:jwt",
		"urn://saml",
	} {
		api := newRecorderAPI()
		if err := action.Execute(context.Background(), exchangeEvent(ft, tokenType, "whatever"), api); err != nil {
			t.Fatalf("execute %s: %v", tokenType, err)
		}
		if api.denied {
			t.Fatalf("configured type %s was denied by the guard", tokenType)
		}
	}
}

func TestDefaultExchangeSetRoutesByTokenType(t *testing.T) {
	ft := newFakeTenant(t)

	cfg := defaultConfig()
	cfg.RateLimit.Default.Enabled = false
	cfg.SessionCount.MaxSessions = 0

	rt, err := New().WithConfig(cfg).WithHTTPClient(ft.client()).WithMetricsEnabled(true).WithDefaultActions().Build()
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(rt.Close)

	token := ft.signAccessToken(t, jwt.MapClaims{"sub": "auth0|alice"})
	event := exchangeEvent(ft, "urn:ietf:params:oauth:token-type:access_token", token)

	api := newRecorderAPI()
	if err := rt.ExecuteTokenExchange(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatalf("access token exchange denied by a non-matching sibling: %s", api.denyDescription)
	}
	if api.setUserID != "auth0|alice" {
		t.Fatalf("bound user = %q, want the token subject", api.setUserID)
	}
	if api.setUserConnection != "" {
		t.Fatalf("binding overwritten through connection %q", api.setUserConnection)
	}

	unknown := newRecorderAPI()
	if err := rt.ExecuteTokenExchange(context.Background(), exchangeEvent(ft, "urn:example:mystery", "whatever"), unknown); err != nil {
		t.Fatalf("execute unknown type: %v", err)
	}
	if !unknown.denied {
		t.Fatal("unrecognized subject token type was not denied")
	}
	if unknown.setUserID != "" || unknown.setUserConnection != "" {
		t.Fatal("user bound despite denial")
	}
}
