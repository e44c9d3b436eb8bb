//go:build integration
// +build integration

package test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	hooks "github.com/idplane/hooks"
	"github.com/redis/go-redis/v9"
)

// newIntegrationRuntime builds a runtime with the full built-in action set
// against an in-process Redis.
func newIntegrationRuntime(t *testing.T, mutate func(*hooks.Config)) (*hooks.Runtime, *hooks.ChannelSink) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := hooks.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	sink := hooks.NewChannelSink(128)
	rt, err := hooks.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuditSink(sink).
		WithMetricsEnabled(true).
		WithDefaultActions().
		Build()
	if err != nil {
		t.Fatalf("runtime build failed: %v", err)
	}
	t.Cleanup(rt.Close)

	return rt, sink
}

// denyRecorder captures the first denial requested through the API.
type denyRecorder struct {
	hooks.NoopAPI
	denied bool
	reason string
}

func (d *denyRecorder) Deny(reason, _ string) {
	if !d.denied {
		d.denied = true
		d.reason = reason
	}
}
