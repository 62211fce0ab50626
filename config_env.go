package trustcore

import (
	"strings"
	"time"

	"github.com/MrEthical07/trustcore/internal/confloader"
)

// EnvProduction is the TRUSTCORE_APP_ENV value that turns on production mode.
const EnvProduction = "production"

// Settings is the flat, file- and environment-facing view of Config.
// Keys follow the environment names: TRUSTCORE_SESSION_SECRET is
// session.secret.
type Settings struct {
	Session struct {
		Secret        string        `koanf:"secret"`
		LookupTimeout time.Duration `koanf:"lookuptimeout"`
	} `koanf:"session"`
	Counter struct {
		Rest struct {
			URL   string `koanf:"url"`
			Token string `koanf:"token"`
		} `koanf:"rest"`
	} `koanf:"counter"`
	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`
	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`
	App struct {
		Env string `koanf:"env"`
	} `koanf:"app"`
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
	Audit struct {
		Enabled bool `koanf:"enabled"`
	} `koanf:"audit"`
}

// LoadOption configures LoadConfig.
type LoadOption = confloader.Option

// FromFile reads a YAML file below the environment.
func FromFile(path string) LoadOption {
	return confloader.WithConfigFile(path)
}

// WithEnvPrefix replaces the TRUSTCORE_ prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return confloader.WithEnvPrefix(prefix)
}

// WithOverrides applies dotted-key values above every other source.
func WithOverrides(values map[string]any) LoadOption {
	return confloader.WithOverrides(values)
}

// LoadSettings reads Settings from the configured sources.
func LoadSettings(opts ...LoadOption) (Settings, error) {
	var s Settings
	if err := confloader.NewLoader(opts...).Load(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadConfig reads Settings and applies them to DefaultConfig. The result is
// validated, so a missing session secret fails with ErrConfigurationMissing.
func LoadConfig(opts ...LoadOption) (Config, Settings, error) {
	s, err := LoadSettings(opts...)
	if err != nil {
		return Config{}, Settings{}, err
	}
	cfg := s.Apply(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return Config{}, s, err
	}
	return cfg, s, nil
}

// Apply overlays non-empty settings onto cfg.
func (s Settings) Apply(cfg Config) Config {
	out := cloneConfig(cfg)
	if s.Session.Secret != "" {
		out.Session.Secret = s.Session.Secret
	}
	if s.Session.LookupTimeout > 0 {
		out.Session.LookupTimeout = s.Session.LookupTimeout
	}
	if s.Counter.Rest.URL != "" {
		out.RateLimit.Distributed.RESTEndpoint = strings.TrimRight(s.Counter.Rest.URL, "/")
		out.RateLimit.Distributed.RESTToken = s.Counter.Rest.Token
	}
	if strings.EqualFold(strings.TrimSpace(s.App.Env), EnvProduction) {
		out.Security.ProductionMode = true
	}
	if s.Log.Level != "" {
		out.Logging.Level = s.Log.Level
	}
	if s.Log.Format != "" {
		out.Logging.Format = s.Log.Format
	}
	if s.Audit.Enabled {
		out.Audit.Enabled = true
	}
	return out
}

// DistributedConfigured reports whether a shared counter backend is named.
func (s Settings) DistributedConfigured() bool {
	return s.Redis.Addr != "" || (s.Counter.Rest.URL != "" && s.Counter.Rest.Token != "")
}
