package hooks

import (
	"context"
	"fmt"
	"testing"
)

func sessionEvent(userID, sessionID string) *LoginEvent {
	return &LoginEvent{
		User:        User{UserID: userID},
		Client:      Client{ClientID: "web"},
		Transaction: Transaction{ID: "tx-1", Protocol: "oidc-basic-profile"},
		Session:     SessionRef{ID: sessionID},
	}
}

func TestSessionLimitRegistersAndCounts(t *testing.T) {
	rt, _ := newTestRuntime(t, func(cfg *Config) {
		cfg.SessionCount.MaxSessions = 3
	})
	action := NewSessionLimit(rt)

	for i := 0; i < 2; i++ {
		api := newRecorderAPI()
		if err := action.Execute(context.Background(), sessionEvent("auth0|u1", fmt.Sprintf("s-%d", i)), api); err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
		if api.denied {
			t.Fatalf("login %d denied under the cap", i+1)
		}
	}

	// The login that takes the live count to the cap is denied.
	api := newRecorderAPI()
	if err := action.Execute(context.Background(), sessionEvent("auth0|u1", "s-3"), api); err != nil {
		t.Fatalf("3rd login: %v", err)
	}
	if !api.denied {
		t.Fatal("login reaching the cap of 3 was admitted")
	}
	if api.denyDescription != "max sessions reached" {
		t.Fatalf("deny description = %q", api.denyDescription)
	}
}

func TestSessionLimitIsPerUser(t *testing.T) {
	rt, _ := newTestRuntime(t, func(cfg *Config) {
		cfg.SessionCount.MaxSessions = 2
	})
	action := NewSessionLimit(rt)

	if err := action.Execute(context.Background(), sessionEvent("auth0|u1", "s-1"), newRecorderAPI()); err != nil {
		t.Fatalf("first user: %v", err)
	}

	blocked := newRecorderAPI()
	if err := action.Execute(context.Background(), sessionEvent("auth0|u1", "s-2"), blocked); err != nil {
		t.Fatalf("first user second session: %v", err)
	}
	if !blocked.denied {
		t.Fatal("first user's second session was admitted at the cap")
	}

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), sessionEvent("auth0|u2", "s-1"), api); err != nil {
		t.Fatalf("second user: %v", err)
	}
	if api.denied {
		t.Fatal("second user's first session was denied")
	}
}

func TestSessionLimitSkipsNonInteractive(t *testing.T) {
	rt, _ := newTestRuntime(t, func(cfg *Config) {
		cfg.SessionCount.MaxSessions = 1
	})
	action := NewSessionLimit(rt)

	event := sessionEvent("auth0|u3", "s-1")
	event.Transaction.Protocol = "oauth2-refresh-token"

	for i := 0; i < 5; i++ {
		api := newRecorderAPI()
		if err := action.Execute(context.Background(), event, api); err != nil {
			t.Fatalf("refresh %d: %v", i+1, err)
		}
		if api.denied {
			t.Fatal("non-interactive login was counted")
		}
	}
}

func TestSessionLimitRegistryOutageAdmits(t *testing.T) {
	rt, mr := newTestRuntime(t, func(cfg *Config) {
		cfg.SessionCount.MaxSessions = 1
	})
	action := NewSessionLimit(rt)

	mr.Close()

	api := newRecorderAPI()
	if err := action.Execute(context.Background(), sessionEvent("auth0|u4", "s-1"), api); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if api.denied {
		t.Fatal("registry outage denied the login")
	}
}
