package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func grantEvent(clientID string, metadata map[string]string) *CredentialsExchangeEvent {
	return &CredentialsExchangeEvent{
		Client:      Client{ClientID: clientID, Metadata: metadata},
		Transaction: Transaction{ID: "tx-1"},
		Request:     Request{IP: "198.51.100.7"},
	}
}

func TestGrantRateLimitAllowsUnderBudget(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	for i := 0; i < 10; i++ {
		api := newRecorderAPI()
		if err := action.Execute(context.Background(), grantEvent("client-a", nil), api); err != nil {
			t.Fatalf("grant %d: %v", i+1, err)
		}
		if api.denied {
			t.Fatalf("grant %d denied: %s", i+1, api.denyDescription)
		}
	}

	if got := rt.metrics.Value(MetricGrantAllowed); got != 10 {
		t.Fatalf("allowed counter = %d, want 10", got)
	}
}

func TestGrantRateLimitDeniesOverBudget(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	for i := 0; i < 10; i++ {
		if err := action.Execute(context.Background(), grantEvent("client-b", nil), newRecorderAPI()); err != nil {
			t.Fatalf("grant %d: %v", i+1, err)
		}
	}

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), grantEvent("client-b", nil), api); err != nil {
		t.Fatalf("11th grant: %v", err)
	}
	if !api.denied {
		t.Fatal("11th grant was not denied")
	}
	if api.denyReason != "invalid_request" {
		t.Fatalf("deny reason = %q, want invalid_request", api.denyReason)
	}
	if !strings.Contains(api.denyDescription, "client-b") {
		t.Fatalf("deny description %q does not name the client", api.denyDescription)
	}
	if got := rt.metrics.Value(MetricGrantRateLimited); got != 1 {
		t.Fatalf("rate limited counter = %d, want 1", got)
	}
}

func TestGrantRateLimitClientOverride(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	metadata := map[string]string{
		"rate_limits": `{"rate_limit_per_time_period": 2, "time_period_seconds": 3600}`,
	}

	for i := 0; i < 2; i++ {
		api := newRecorderAPI()
		if err := action.Execute(context.Background(), grantEvent("client-c", metadata), api); err != nil {
			t.Fatalf("grant %d: %v", i+1, err)
		}
		if api.denied {
			t.Fatalf("grant %d denied under override budget", i+1)
		}
	}

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), grantEvent("client-c", metadata), api); err != nil {
		t.Fatalf("3rd grant: %v", err)
	}
	if !api.denied {
		t.Fatal("3rd grant allowed past the override budget of 2")
	}
}

func TestGrantRateLimitDisabledByOverride(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	metadata := map[string]string{"rate_limits": `{"enabled": false}`}

	for i := 0; i < 25; i++ {
		api := newRecorderAPI()
		if err := action.Execute(context.Background(), grantEvent("client-d", metadata), api); err != nil {
			t.Fatalf("grant %d: %v", i+1, err)
		}
		if api.denied {
			t.Fatalf("grant %d denied with limiter disabled", i+1)
		}
	}
}

func TestGrantRateLimitMalformedOverrideFallsBack(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	metadata := map[string]string{"rate_limits": `{not json`}

	for i := 0; i < 10; i++ {
		if err := action.Execute(context.Background(), grantEvent("client-e", metadata), newRecorderAPI()); err != nil {
			t.Fatalf("grant %d: %v", i+1, err)
		}
	}

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), grantEvent("client-e", metadata), api); err != nil {
		t.Fatalf("11th grant: %v", err)
	}
	if !api.denied {
		t.Fatal("malformed override did not fall back to the default budget")
	}
}

func TestGrantRateLimitHistoryTruncation(t *testing.T) {
	rt, mr := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	// Seed a history far past the ceiling, all inside the window.
	now := time.Now()
	millis := make([]int64, 0, 150)
	for i := 0; i < 150; i++ {
		millis = append(millis, now.Add(-time.Duration(i)*time.Second).UnixMilli())
	}
	data, _ := json.Marshal(millis)
	mr.Set("grh:client-f", string(data))

	if err := action.Execute(context.Background(), grantEvent("client-f", nil), newRecorderAPI()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	stored, err := mr.Get("grh:client-f")
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var persisted []int64
	if err := json.Unmarshal([]byte(stored), &persisted); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(persisted) != 100 {
		t.Fatalf("persisted history length = %d, want 100", len(persisted))
	}
}

func TestGrantRateLimitCorruptHistoryResetsWindow(t *testing.T) {
	rt, mr := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	mr.Set("grh:client-g", "not a json array")

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), grantEvent("client-g", nil), api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatal("corrupt history denied the grant instead of resetting the window")
	}

	stored, err := mr.Get("grh:client-g")
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var persisted []int64
	if err := json.Unmarshal([]byte(stored), &persisted); err != nil {
		t.Fatalf("history was not rewritten as JSON: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("reset history length = %d, want 1", len(persisted))
	}
}

// readOnlyHistory serves a fixed window and refuses every write, the shape of
// a store that lost its master but still answers reads.
type readOnlyHistory struct {
	stamps []time.Time
}

func (h *readOnlyHistory) Load(ctx context.Context, clientID string) ([]time.Time, error) {
	return h.stamps, nil
}

func (h *readOnlyHistory) Save(ctx context.Context, clientID string, stamps []time.Time, ttl time.Duration) error {
	return fmt.Errorf("write refused")
}

func TestGrantRateLimitPersistFailureAdmitsOverBudget(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	// A window already past the default budget of 10. Without the persisted
	// admission the denial cannot be supported, so the grant goes through.
	now := time.Now()
	stamps := make([]time.Time, 0, 12)
	for i := 0; i < 12; i++ {
		stamps = append(stamps, now.Add(-time.Duration(i)*time.Minute))
	}
	rt.history = &readOnlyHistory{stamps: stamps}

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), grantEvent("client-j", nil), api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatalf("persist failure denied the grant: %s", api.denyDescription)
	}
	if got := rt.metrics.Value(MetricGrantFailOpen); got != 1 {
		t.Fatalf("fail open counter = %d, want 1", got)
	}
	if got := rt.metrics.Value(MetricGrantRateLimited); got != 0 {
		t.Fatalf("rate limited counter = %d, want 0", got)
	}
}

func TestGrantRateLimitStoreOutageDenies(t *testing.T) {
	rt, mr := newTestRuntime(t, nil)
	action := NewGrantRateLimit(rt)

	mr.Close()

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), grantEvent("client-h", nil), api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !api.denied {
		t.Fatal("store outage did not deny the grant")
	}
	if api.denyReason != "server_error" {
		t.Fatalf("deny reason = %q, want server_error", api.denyReason)
	}
}

func TestGrantRateLimitWindowExpiry(t *testing.T) {
	rt, mr := newTestRuntime(t, func(cfg *Config) {
		cfg.RateLimit.Default.MaxGrants = 1
		cfg.RateLimit.Default.TimePeriod = time.Hour
	})
	action := NewGrantRateLimit(rt)

	// One stale stamp outside the window and one fresh inside it.
	stale := time.Now().Add(-2 * time.Hour).UnixMilli()
	data := fmt.Sprintf("[%d]", stale)
	mr.Set("grh:client-i", data)

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), grantEvent("client-i", nil), api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatal("stale history outside the window counted against the budget")
	}
}
