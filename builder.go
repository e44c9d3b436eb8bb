package hooks

import (
	"errors"
	"net/http"

	"github.com/idplane/hooks/internal/stores"
	"github.com/idplane/hooks/saml"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by hooks APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config     Config
	redis      *redis.Client
	httpClient *http.Client
	auditSink  AuditSink

	defaults bool
	built    bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient describes the withhttpclient operation and its observable behavior.
//
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithDefaultActions registers the full built-in action set on the runtime
// produced by [Builder.Build]. Individual actions can still be registered by
// hand when only a subset is wanted.
func (b *Builder) WithDefaultActions() *Builder {
	b.defaults = true
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Runtime, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	needsRedis := cfg.RateLimit.Default.Enabled || cfg.SessionCount.MaxSessions > 0
	if b.redis == nil && needsRedis {
		return nil, errors.New("redis client required for rate limiting and session counting")
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	rt := &Runtime{
		config:     cfg,
		redis:      b.redis,
		httpClient: httpClient,
	}

	if b.redis != nil {
		rt.history = stores.NewGrantHistoryStore(b.redis, cfg.RateLimit.RedisPrefix, cfg.RateLimit.MaxHistorySize)
		rt.sessions = stores.NewSessionRegistry(b.redis, cfg.SessionCount.RedisPrefix)
	}

	if cfg.SAML.CertificatePEM != "" {
		verifier, err := saml.NewVerifier(cfg.SAML.CertificatePEM)
		if err != nil {
			return nil, err
		}
		rt.samlVerifier = verifier
	}

	rt.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	rt.metrics = NewMetrics(cfg.Metrics)

	if b.defaults {
		rt.registerDefaults()
	}

	b.built = true

	return rt, nil
}
