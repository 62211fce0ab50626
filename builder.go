package trustcore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	internalaudit "github.com/MrEthical07/trustcore/internal/audit"
	"github.com/MrEthical07/trustcore/internal/limiters"
	"github.com/MrEthical07/trustcore/internal/logging"
	"github.com/MrEthical07/trustcore/internal/rate"
	"github.com/MrEthical07/trustcore/token"
	"github.com/redis/go-redis/v9"
)

// CounterStore holds the per-key windows of the process-local counter.
type CounterStore = rate.CounterStore

// CounterWindow is one key's fixed-window state in a [CounterStore].
type CounterWindow = rate.Window

// NewShardedCounterStore returns the in-memory [CounterStore] with
// shardCount shards (a power of two).
func NewShardedCounterStore(shardCount int) CounterStore {
	return rate.NewShardedStore(shardCount)
}

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	http   *http.Client

	directory    Directory
	credentials  CredentialStore
	jobs         JobStore
	notifier     Notifier
	verifier     TokenVerifier
	counterStore CounterStore
	auditSink    AuditSink
	logger       *slog.Logger

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects Redis as the distributed counter backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the client used by the REST counter backend.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.http = client
	return b
}

// WithDirectory sets the identity directory used by session resolution.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithCredentialStore sets the API key store.
func (b *Builder) WithCredentialStore(s CredentialStore) *Builder {
	b.credentials = s
	return b
}

// WithJobStore sets the fulfillment job store.
func (b *Builder) WithJobStore(s JobStore) *Builder {
	b.jobs = s
	return b
}

// WithNotifier sets the fulfillment notifier.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithTokenVerifier enables federated sign-in.
func (b *Builder) WithTokenVerifier(v TokenVerifier) *Builder {
	b.verifier = v
	return b
}

// WithCounterStore replaces the in-memory store behind the local counter.
func (b *Builder) WithCounterStore(s CounterStore) *Builder {
	b.counterStore = s
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Without one the engine logs nothing.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. A Builder
// can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		codec:       token.NewCodec([]byte(cfg.Session.Secret)),
		directory:   b.directory,
		credentials: b.credentials,
		jobs:        b.jobs,
		notifier:    b.notifier,
		verifier:    b.verifier,
		logger:      logger,
		metrics:     NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	// -------- LOCAL COUNTER --------
	store := b.counterStore
	if store == nil {
		store = rate.NewShardedStore(cfg.RateLimit.Edge.ShardCount)
	}
	engine.local = rate.NewLocalCounter(store)
	if cfg.RateLimit.Edge.Enabled {
		engine.edge = limiters.NewEdgeLimiter(engine.local, limiters.EdgeLimiterConfig{
			ProtectedSuffixes: cfg.RateLimit.Edge.ProtectedSuffixes,
			Limit:             cfg.RateLimit.Edge.Limit,
			Window:            cfg.RateLimit.Edge.Window,
		})
	}
	if cfg.RateLimit.Edge.JanitorInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		engine.local.StartJanitor(ctx, cfg.RateLimit.Edge.JanitorInterval)
		engine.stopJanitor = cancel
	}

	// -------- DISTRIBUTED COUNTER --------
	dist := cfg.RateLimit.Distributed
	var backend rate.Backend
	switch {
	case b.redis != nil:
		backend = rate.NewRedisBackend(b.redis)
		logger.Info("trustcore: distributed counter on redis")
	case dist.RESTEndpoint != "":
		backend = rate.NewRESTBackend(dist.RESTEndpoint, dist.RESTToken, b.http)
		logger.Info("trustcore: distributed counter on rest endpoint", slog.String("endpoint", dist.RESTEndpoint))
	default:
		logger.Info("trustcore: no distributed counter backend; AllowDistributed disabled")
	}
	if backend != nil {
		engine.distributed = rate.NewDistributed(backend, rate.DistributedOptions{
			Prefix:        dist.KeyPrefix,
			CallTimeout:   dist.CallTimeout,
			ExpireTimeout: dist.ExpireTimeout,
			Logger:        logger,
		})
	}

	// -------- NAMED RESOURCES --------
	policies := make(map[string]limiters.ResourcePolicy, len(cfg.RateLimit.Resources))
	for name, p := range cfg.RateLimit.Resources {
		policies[name] = limiters.ResourcePolicy{Limit: p.Limit, Window: p.Window}
	}
	var resourceCounter rate.Limiter = engine.local
	if engine.distributed != nil {
		resourceCounter = engine.distributed
	} else if len(policies) > 0 {
		logger.Warn("trustcore: named resources metered per process without a distributed counter")
	}
	engine.resources = limiters.NewResourceLimiter(resourceCounter, policies)

	b.built = true

	return engine, nil
}

// NewLogger builds the redacting structured logger described by cfg.
func NewLogger(cfg LoggingConfig) *slog.Logger {
	return logging.New(logging.Config{Level: cfg.Level, Format: cfg.Format})
}
