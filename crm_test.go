package hooks

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func crmEvent() *PreRegistrationEvent {
	return &PreRegistrationEvent{
		User:    User{Email: "Alice@Example.COM"},
		Client:  Client{ClientID: "signup-app"},
		Request: Request{IP: "203.0.113.9"},
	}
}

func newCRMRuntime(t *testing.T, endpoint string) *Runtime {
	t.Helper()
	cfg := defaultConfig()
	cfg.RateLimit.Default.Enabled = false
	cfg.SessionCount.MaxSessions = 0
	cfg.CRM.EndpointURL = endpoint
	rt, err := New().
		WithConfig(cfg).
		WithHTTPClient(http.DefaultClient).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestCRMEnrichStoresCustomerID(t *testing.T) {
	var gotHash string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotHash = body["email_hash"]
		json.NewEncoder(w).Encode(map[string]string{"customer_id": "cust-77"})
	}))
	defer server.Close()

	rt := newCRMRuntime(t, server.URL)
	action := NewCRMEnrich(rt)
	event := crmEvent()

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if api.denied {
		t.Fatalf("registration denied: %s", api.denyDescription)
	}
	if api.appMetadata["customer_id"] != "cust-77" {
		t.Fatalf("app metadata = %v", api.appMetadata)
	}

	sum := md5.Sum([]byte("alice@example.com"))
	if gotHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("email hash = %q, want lowercased md5", gotHash)
	}
}

func TestCRMEnrichOutageDeniesRegistration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	rt := newCRMRuntime(t, server.URL)
	action := NewCRMEnrich(rt)
	event := crmEvent()

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !api.denied {
		t.Fatal("CRM outage did not deny the registration")
	}
	if api.denyDescription != "internal error" {
		t.Fatalf("deny description = %q, internals must not leak", api.denyDescription)
	}
	if rt.MetricsSnapshot().Counters[MetricCRMUnavailable] != 1 {
		t.Fatal("outage was not counted")
	}
}

func TestCRMEnrichMissingCustomerIDDenies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	rt := newCRMRuntime(t, server.URL)
	action := NewCRMEnrich(rt)
	event := crmEvent()

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !api.denied {
		t.Fatal("empty customer id was accepted")
	}
}

func TestCRMEnrichSkipsWithoutEndpoint(t *testing.T) {
	rt := newCRMRuntime(t, "")
	action := NewCRMEnrich(rt)
	event := crmEvent()

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied || len(api.appMetadata) != 0 {
		t.Fatal("unconfigured CRM was not a no-op")
	}
}

func TestCRMEnrichSkipsWithoutEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("CRM was contacted for a user without an email")
	}))
	defer server.Close()

	rt := newCRMRuntime(t, server.URL)
	action := NewCRMEnrich(rt)
	event := &PreRegistrationEvent{Client: Client{ClientID: "signup-app"}}

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), event, api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatal("missing email denied the registration")
	}
}
