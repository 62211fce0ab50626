package trustcore

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config is the complete engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session     SessionConfig
	APIKey      APIKeyConfig
	RateLimit   RateLimitConfig
	Fulfillment FulfillmentConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session token signing and resolution.
type SessionConfig struct {
	// Secret is the HMAC-SHA256 signing key. Required.
	Secret string
	// LookupTimeout bounds the directory lookup performed by ResolveSession.
	LookupTimeout time.Duration
}

/*
====================================
API KEY CONFIG
====================================
*/

// APIKeyConfig controls the quota gate.
type APIKeyConfig struct {
	// Header is the request header carrying the key.
	Header string
	// StoreTimeout bounds each credential store call.
	StoreTimeout time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig groups the two counter tiers and the named resources
// metered on the distributed tier.
type RateLimitConfig struct {
	Edge        EdgeConfig
	Distributed DistributedConfig
	Resources   map[string]ResourcePolicy
}

// EdgeConfig is the process-local throttle applied before routing.
type EdgeConfig struct {
	Enabled           bool
	ProtectedSuffixes []string
	Limit             int
	Window            time.Duration
	// TrustForwardedFor takes the client address from the first
	// X-Forwarded-For entry. Enable only behind a proxy that sets it.
	TrustForwardedFor bool
	// ShardCount must be a power of two.
	ShardCount int
	// JanitorInterval controls how often expired windows are swept. Zero
	// disables the janitor; expired windows are then replaced lazily.
	JanitorInterval time.Duration
}

// DistributedConfig selects and tunes the shared counter. A Redis client
// supplied to the Builder takes precedence over the REST endpoint.
type DistributedConfig struct {
	RESTEndpoint  string
	RESTToken     string
	KeyPrefix     string
	CallTimeout   time.Duration
	ExpireTimeout time.Duration
}

// ResourcePolicy is the budget of one named resource per subject.
type ResourcePolicy struct {
	Limit  int
	Window time.Duration
}

/*
====================================
FULFILLMENT CONFIG
====================================
*/

// FulfillmentConfig controls the notification dispatcher.
type FulfillmentConfig struct {
	// Timeout bounds each store call and the notifier send.
	Timeout time.Duration
	// IdempotencyNamespace seeds the UUIDv5 idempotency keys handed to the
	// notifier.
	IdempotencyNamespace uuid.UUID
}

/*
====================================
AUDIT / METRICS / SECURITY / LOGGING
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds environment-dependent hardening.
type SecurityConfig struct {
	// ProductionMode sets the Secure attribute on session cookies.
	ProductionMode bool
}

// LoggingConfig is used when the engine builds its own logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// DefaultIdempotencyNamespace is the default UUIDv5 namespace for
// notification idempotency keys.
var DefaultIdempotencyNamespace = uuid.MustParse("6f1d2a8e-54c3-4c1b-9a57-2b0e8f3d7c41")

// DefaultConfig returns the reference configuration with an empty session
// secret. Callers must set Session.Secret.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			LookupTimeout: 2 * time.Second,
		},
		APIKey: APIKeyConfig{
			Header:       DefaultAPIKeyHeader,
			StoreTimeout: 2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Edge: EdgeConfig{
				Enabled:           true,
				ProtectedSuffixes: []string{"/api/ai/draft", "/api/ai/improve", "/api/ai/chat"},
				Limit:             3,
				Window:            time.Minute,
				ShardCount:        32,
				JanitorInterval:   time.Minute,
			},
			Distributed: DistributedConfig{
				KeyPrefix:     "tc:rl:",
				CallTimeout:   2 * time.Second,
				ExpireTimeout: 2 * time.Second,
			},
		},
		Fulfillment: FulfillmentConfig{
			Timeout:              10 * time.Second,
			IdempotencyNamespace: DefaultIdempotencyNamespace,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.RateLimit.Edge.ProtectedSuffixes = append([]string(nil), cfg.RateLimit.Edge.ProtectedSuffixes...)
	if cfg.RateLimit.Resources != nil {
		out.RateLimit.Resources = make(map[string]ResourcePolicy, len(cfg.RateLimit.Resources))
		for k, v := range cfg.RateLimit.Resources {
			out.RateLimit.Resources[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. A missing session secret is
// reported as ErrConfigurationMissing.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Session.Secret) == "" {
		return ErrConfigurationMissing
	}
	if c.Session.LookupTimeout <= 0 {
		return errors.New("Session LookupTimeout must be > 0")
	}

	if strings.TrimSpace(c.APIKey.Header) == "" {
		return errors.New("APIKey Header is required")
	}
	if c.APIKey.StoreTimeout <= 0 {
		return errors.New("APIKey StoreTimeout must be > 0")
	}

	edge := c.RateLimit.Edge
	if edge.Enabled {
		if len(edge.ProtectedSuffixes) == 0 {
			return errors.New("RateLimit Edge ProtectedSuffixes must not be empty when enabled")
		}
		for _, s := range edge.ProtectedSuffixes {
			if !strings.HasPrefix(s, "/") {
				return errors.New("RateLimit Edge ProtectedSuffixes must start with '/'")
			}
		}
		if edge.Limit <= 0 {
			return errors.New("RateLimit Edge Limit must be > 0")
		}
		if edge.Window <= 0 {
			return errors.New("RateLimit Edge Window must be > 0")
		}
	}
	if edge.ShardCount <= 0 || edge.ShardCount&(edge.ShardCount-1) != 0 {
		return errors.New("RateLimit Edge ShardCount must be a power of two")
	}
	if edge.JanitorInterval < 0 {
		return errors.New("RateLimit Edge JanitorInterval must be >= 0")
	}

	dist := c.RateLimit.Distributed
	if dist.RESTEndpoint != "" {
		u, err := url.Parse(dist.RESTEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("RateLimit Distributed RESTEndpoint must be an http(s) URL")
		}
		if dist.RESTToken == "" {
			return errors.New("RateLimit Distributed RESTToken is required with RESTEndpoint")
		}
	}
	if dist.CallTimeout <= 0 || dist.ExpireTimeout <= 0 {
		return errors.New("RateLimit Distributed timeouts must be > 0")
	}
	for name, p := range c.RateLimit.Resources {
		if name == "" {
			return errors.New("RateLimit Resources names must not be empty")
		}
		if p.Limit <= 0 || p.Window < time.Second {
			return errors.New("RateLimit Resources policies need Limit > 0 and Window >= 1s")
		}
	}

	if c.Fulfillment.Timeout <= 0 {
		return errors.New("Fulfillment Timeout must be > 0")
	}
	if c.Fulfillment.IdempotencyNamespace == uuid.Nil {
		return errors.New("Fulfillment IdempotencyNamespace must be set")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text", "console":
	default:
		return errors.New("Logging Format must be 'json' or 'text'")
	}

	return nil
}
