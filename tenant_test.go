package hooks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// fakeTenant is an in-process stand-in for the identity platform: JWKS, the
// token endpoint, and the management API, served over TLS so the production
// https URL construction works unchanged against it.
type fakeTenant struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey
	kid    string

	mu sync.Mutex
	// idClaims is signed into the id_token returned by the code exchange.
	idClaims jwt.MapClaims
	// exchangeStatus overrides the token endpoint status when nonzero.
	exchangeStatus int

	grantCalls    int
	linkCalls     []string
	unlinkCalls   []string
	deleteCalls   []string
	patchedUsers  map[string]map[string]any
	usersByEmail  []map[string]any
	deviceCreds   []map[string]any
	deletedCreds  []string
	exchangeCalls int
}

func newFakeTenant(t *testing.T) *fakeTenant {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	ft := &fakeTenant{
		t:            t,
		key:          key,
		kid:          "tenant-key-1",
		patchedUsers: map[string]map[string]any{},
	}

	ft.server = httptest.NewTLSServer(http.HandlerFunc(ft.handle))
	t.Cleanup(ft.server.Close)

	return ft
}

// domain returns the host:port the runtime should treat as the tenant domain.
func (ft *fakeTenant) domain() string {
	return strings.TrimPrefix(ft.server.URL, "https://")
}

func (ft *fakeTenant) client() *http.Client {
	return ft.server.Client()
}

func (ft *fakeTenant) secrets() Secrets {
	return Secrets{
		"domain":       ft.domain(),
		"clientId":     "action-client",
		"clientSecret": "action-secret",
	}
}

// setIDClaims configures the claims of the next id_token, filling issuer,
// audience and timestamps unless the test overrides them.
func (ft *fakeTenant) setIDClaims(claims jwt.MapClaims) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	now := time.Now()
	merged := jwt.MapClaims{
		"iss": "https://" + ft.domain() + "/",
		"aud": "action-client",
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	}
	for k, v := range claims {
		merged[k] = v
	}
	ft.idClaims = merged
}

func (ft *fakeTenant) signIDToken() string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, ft.idClaims)
	token.Header["kid"] = ft.kid
	raw, err := token.SignedString(ft.key)
	if err != nil {
		ft.t.Fatalf("sign id token: %v", err)
	}
	return raw
}

func (ft *fakeTenant) handle(w http.ResponseWriter, r *http.Request) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	switch {
	case r.URL.Path == "/.well-known/jwks.json":
		ft.serveJWKS(w)
	case r.URL.Path == "/oauth/token":
		ft.serveToken(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v2/"):
		ft.serveManagement(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (ft *fakeTenant) serveJWKS(w http.ResponseWriter) {
	pub, err := jwk.FromRaw(&ft.key.PublicKey)
	if err != nil {
		ft.t.Fatalf("jwk from key: %v", err)
	}
	if err := pub.Set(jwk.KeyIDKey, ft.kid); err != nil {
		ft.t.Fatalf("set kid: %v", err)
	}
	if err := pub.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		ft.t.Fatalf("set alg: %v", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		ft.t.Fatalf("add key: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(set); err != nil {
		ft.t.Fatalf("encode jwks: %v", err)
	}
}

func (ft *fakeTenant) serveToken(w http.ResponseWriter, r *http.Request) {
	if ft.exchangeStatus != 0 {
		http.Error(w, "exchange refused", ft.exchangeStatus)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	// The m2m grant arrives form-encoded; the nested code exchange as JSON.
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		ft.grantCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mgmt-token-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
		return
	}

	ft.exchangeCalls++
	json.NewEncoder(w).Encode(map[string]string{
		"id_token": ft.signIDToken(),
	})
}

func (ft *fakeTenant) serveManagement(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer mgmt-token-1" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/v2")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/identities"):
		ft.linkCalls = append(ft.linkCalls, path)
		w.Write([]byte("[]"))
	case r.Method == http.MethodDelete && strings.Contains(path, "/identities/"):
		ft.unlinkCalls = append(ft.unlinkCalls, path)
		w.Write([]byte("[]"))
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/users/"):
		ft.deleteCalls = append(ft.deleteCalls, path)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPatch && strings.HasPrefix(path, "/users/"):
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		userID := strings.TrimPrefix(path, "/users/")
		ft.patchedUsers[userID] = body
		w.Write([]byte("{}"))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/users-by-email"):
		json.NewEncoder(w).Encode(ft.usersByEmail)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/device-credentials"):
		json.NewEncoder(w).Encode(ft.deviceCreds)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/device-credentials/"):
		ft.deletedCreds = append(ft.deletedCreds, strings.TrimPrefix(path, "/device-credentials/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

// newTenantRuntime builds a runtime wired to the fake tenant's TLS client.
func newTenantRuntime(t *testing.T, ft *fakeTenant, mutate func(*Config)) *Runtime {
	t.Helper()

	cfg := defaultConfig()
	cfg.RateLimit.Default.Enabled = false
	cfg.SessionCount.MaxSessions = 0
	if mutate != nil {
		mutate(&cfg)
	}

	rt, err := New().WithConfig(cfg).WithHTTPClient(ft.client()).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(rt.Close)

	return rt
}
