package hooks

import (
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuilderRequiresRedisForRateLimiting(t *testing.T) {
	_, err := New().Build()
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("err = %v, want the redis requirement", err)
	}
}

func TestBuilderAllowsNoRedisWhenStoresDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Default.Enabled = false
	cfg.SessionCount.MaxSessions = 0

	rt, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(rt.Close)

	if rt.history != nil || rt.sessions != nil {
		t.Fatal("redis-backed stores created without a client")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Default.Enabled = false
	cfg.SessionCount.MaxSessions = 0

	b := New().WithConfig(cfg)
	rt, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	t.Cleanup(rt.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("second build succeeded")
	}
}

func TestBuilderValidatesConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Default.MaxGrants = 0

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("invalid config accepted")
	}

	cfg = defaultConfig()
	cfg.TokenCache.CacheKey = ""
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("empty token cache key accepted")
	}
}

func TestBuilderRejectsBadSAMLCertificate(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Default.Enabled = false
	cfg.SessionCount.MaxSessions = 0
	cfg.SAML.CertificatePEM = "not a certificate"

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("malformed certificate accepted")
	}
}

func TestBuilderAuditSinkEnablesAudit(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Default.Enabled = false
	cfg.SessionCount.MaxSessions = 0

	rt, err := New().WithConfig(cfg).WithAuditSink(NewChannelSink(4)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(rt.Close)

	if rt.audit == nil {
		t.Fatal("audit sink did not enable the dispatcher")
	}
}

func TestBuilderWiresStoresWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rt, err := New().WithRedis(client).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(rt.Close)

	if rt.history == nil || rt.sessions == nil {
		t.Fatal("redis-backed stores missing")
	}
}
