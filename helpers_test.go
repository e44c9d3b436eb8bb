package hooks

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestRuntime builds a runtime against a miniredis instance. mutate may be
// nil; when set it edits the default config before the build.
func newTestRuntime(t *testing.T, mutate func(*Config)) (*Runtime, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := defaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	rt, err := New().WithConfig(cfg).WithRedis(client).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(rt.Close)

	return rt, mr
}
