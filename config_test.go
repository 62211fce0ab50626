package trustcore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "lookup timeout zero",
			mutate: func(c *Config) {
				c.Session.LookupTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "api key header blank",
			mutate: func(c *Config) {
				c.APIKey.Header = "   "
			},
			wantValid: false,
		},
		{
			name: "api key store timeout zero",
			mutate: func(c *Config) {
				c.APIKey.StoreTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "edge suffix without slash",
			mutate: func(c *Config) {
				c.RateLimit.Edge.ProtectedSuffixes = []string{"api/ai/chat"}
			},
			wantValid: false,
		},
		{
			name: "edge disabled ignores suffixes",
			mutate: func(c *Config) {
				c.RateLimit.Edge.Enabled = false
				c.RateLimit.Edge.ProtectedSuffixes = nil
			},
			wantValid: true,
		},
		{
			name: "shard count not power of two",
			mutate: func(c *Config) {
				c.RateLimit.Edge.ShardCount = 24
			},
			wantValid: false,
		},
		{
			name: "rest endpoint without token",
			mutate: func(c *Config) {
				c.RateLimit.Distributed.RESTEndpoint = "https://kv.example.com"
			},
			wantValid: false,
		},
		{
			name: "rest endpoint not a url",
			mutate: func(c *Config) {
				c.RateLimit.Distributed.RESTEndpoint = "kv.example.com"
				c.RateLimit.Distributed.RESTToken = "t"
			},
			wantValid: false,
		},
		{
			name: "rest endpoint with token",
			mutate: func(c *Config) {
				c.RateLimit.Distributed.RESTEndpoint = "https://kv.example.com"
				c.RateLimit.Distributed.RESTToken = "t"
			},
			wantValid: true,
		},
		{
			name: "resource window below a second",
			mutate: func(c *Config) {
				c.RateLimit.Resources = map[string]ResourcePolicy{"ai": {Limit: 10, Window: 500 * time.Millisecond}}
			},
			wantValid: false,
		},
		{
			name: "resource policy valid",
			mutate: func(c *Config) {
				c.RateLimit.Resources = map[string]ResourcePolicy{"ai": {Limit: 100, Window: time.Hour}}
			},
			wantValid: true,
		},
		{
			name: "nil namespace",
			mutate: func(c *Config) {
				c.Fulfillment.IdempotencyNamespace = uuid.Nil
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "latency without metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
		{
			name: "unknown log format",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigValidateMissingSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if _, err := New().Build(); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("Build without secret: expected ErrConfigurationMissing, got %v", err)
	}
}

func TestCloneConfigDetachesSlicesAndMaps(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Resources = map[string]ResourcePolicy{"ai": {Limit: 1, Window: time.Minute}}

	clone := cloneConfig(cfg)
	clone.RateLimit.Edge.ProtectedSuffixes[0] = "/changed"
	clone.RateLimit.Resources["ai"] = ResourcePolicy{Limit: 99, Window: time.Minute}

	if cfg.RateLimit.Edge.ProtectedSuffixes[0] == "/changed" {
		t.Fatal("suffix slice shared with clone")
	}
	if cfg.RateLimit.Resources["ai"].Limit != 1 {
		t.Fatal("resource map shared with clone")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("TRUSTCORE_SESSION_SECRET", testSecret)
	t.Setenv("TRUSTCORE_COUNTER_REST_URL", "https://kv.example.com/")
	t.Setenv("TRUSTCORE_COUNTER_REST_TOKEN", "tok")
	t.Setenv("TRUSTCORE_APP_ENV", "production")
	t.Setenv("TRUSTCORE_LOG_LEVEL", "debug")

	cfg, settings, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Session.Secret != testSecret {
		t.Fatalf("secret: got %q", cfg.Session.Secret)
	}
	if cfg.RateLimit.Distributed.RESTEndpoint != "https://kv.example.com" {
		t.Fatalf("endpoint: got %q", cfg.RateLimit.Distributed.RESTEndpoint)
	}
	if cfg.RateLimit.Distributed.RESTToken != "tok" {
		t.Fatalf("token: got %q", cfg.RateLimit.Distributed.RESTToken)
	}
	if !cfg.Security.ProductionMode {
		t.Fatal("expected production mode")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level: got %q", cfg.Logging.Level)
	}
	if !settings.DistributedConfigured() {
		t.Fatal("expected distributed counter to be configured")
	}
}

func TestLoadConfigMissingSecret(t *testing.T) {
	_, _, err := LoadConfig(WithEnvPrefix("TRUSTCORE_TEST_EMPTY_"))
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestLoadConfigFileThenEnvThenOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustcore.yaml")
	body := "session:\n  secret: from-file\n  lookuptimeout: 3s\nlog:\n  format: text\n  level: warn\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRUSTCORE_LOG_LEVEL", "error")

	cfg, _, err := LoadConfig(FromFile(path), WithOverrides(map[string]any{"app.env": "production"}))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Session.Secret != "from-file" {
		t.Fatalf("secret: got %q", cfg.Session.Secret)
	}
	if cfg.Session.LookupTimeout != 3*time.Second {
		t.Fatalf("lookup timeout: got %s", cfg.Session.LookupTimeout)
	}
	if cfg.Logging.Format != "text" {
		t.Fatalf("format: got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("env must win over file, got level %q", cfg.Logging.Level)
	}
	if !cfg.Security.ProductionMode {
		t.Fatal("override must set production mode")
	}
}
