package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	hooks "github.com/idplane/hooks"
	"github.com/idplane/hooks/metrics/export/internaldefs"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		clients     = flag.Int("clients", 1000, "number of distinct m2m client ids to drive")
		users       = flag.Int("users", 10000, "number of distinct user ids to drive")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (grant + login)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		maxGrants   = flag.Int("max-grants", 0, "grant rate limit per client per window; 0 keeps the default")
	)
	flag.Parse()

	if *clients <= 0 || *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "clients, users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := hooks.DefaultConfig()
	if *maxGrants > 0 {
		cfg.RateLimit.Default.MaxGrants = *maxGrants
	}

	rt, err := hooks.New().
		WithConfig(cfg).
		WithRedis(client).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		WithDefaultActions().
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime build failed: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	grantStats := runGrantPhase(ctx, rt, *clients, *ops, *concurrency)
	loginStats := runLoginPhase(ctx, rt, *users, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("grant", grantStats)
	printStats("login", loginStats)
	printCounters(rt.MetricsSnapshot())
}

func runGrantPhase(ctx context.Context, rt *hooks.Runtime, clients, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		denials   int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				event := &hooks.CredentialsExchangeEvent{
					Client:      hooks.Client{ClientID: fmt.Sprintf("m2m-%d", r.Intn(clients))},
					Transaction: hooks.Transaction{ID: fmt.Sprintf("tx-cc-%d", i), Protocol: "oauth2-client-credentials"},
					Request:     hooks.Request{IP: "127.0.0.1"},
				}
				api := &denyCountingAPI{}
				t0 := time.Now()
				err := rt.ExecuteCredentialsExchange(ctx, event, api)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if api.denied {
					atomic.AddInt64(&denials, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)

	stats := computeStats(total, latencies, failures)
	stats.denials = atomic.LoadInt64(&denials)
	return stats
}

func runLoginPhase(ctx context.Context, rt *hooks.Runtime, users, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		denials   int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				uid := r.Intn(users)
				event := &hooks.LoginEvent{
					User: hooks.User{
						UserID:        fmt.Sprintf("auth0|load-%d", uid),
						Email:         fmt.Sprintf("load-%d@example.com", uid),
						EmailVerified: true,
						Identities: []hooks.Identity{
							{Provider: "auth0", Connection: "Users", UserID: fmt.Sprintf("load-%d", uid)},
						},
					},
					Client:      hooks.Client{ClientID: "load-spa"},
					Connection:  hooks.Connection{Name: "Users", Strategy: "auth0"},
					Transaction: hooks.Transaction{ID: fmt.Sprintf("tx-login-%d", i), Protocol: "oidc-basic-profile"},
					Request:     hooks.Request{IP: "127.0.0.1"},
					Session:     hooks.SessionRef{ID: fmt.Sprintf("sess-%d-%d", uid, i%4)},
					Stats:       hooks.Stats{LoginsCount: 2 + i%50},
				}
				api := &denyCountingAPI{}
				t0 := time.Now()
				err := rt.ExecuteLogin(ctx, event, api)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if api.denied {
					atomic.AddInt64(&denials, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)

	stats := computeStats(total, latencies, failures)
	stats.denials = atomic.LoadInt64(&denials)
	return stats
}

type denyCountingAPI struct {
	hooks.NoopAPI
	denied bool
}

func (d *denyCountingAPI) Deny(string, string) { d.denied = true }

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	denials  int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d denials=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.denials,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printCounters(snapshot hooks.MetricsSnapshot) {
	fmt.Println("---- counters ----")
	for _, def := range internaldefs.CounterDefs {
		if v := snapshot.Counters[def.ID]; v > 0 {
			fmt.Printf("%s=%d\n", def.Name, v)
		}
	}
}
