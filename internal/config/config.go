package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"nyota-loan-api/internal/domain"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// MpesaConfig holds the Daraja gateway credentials. Secrets are expected from
// the environment; the yaml keys exist for local development only.
type MpesaConfig struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	ShortCode      string `yaml:"short_code"`
	Passkey        string `yaml:"passkey"`
	CallbackURL    string `yaml:"callback_url"`
	BaseURL        string `yaml:"base_url"` // sandbox by default
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RegistryConfig selects the application registry backend. "memory" is the
// default; "redis" lets correlations survive a restart.
type RegistryConfig struct {
	Backend string `yaml:"backend"` // memory | redis
}

type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int           `yaml:"limit"`  // pushes per window per phone number
	Window  time.Duration `yaml:"window"` // e.g. 1m
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Mpesa     MpesaConfig     `yaml:"mpesa"`
	Redis     RedisConfig     `yaml:"redis"`
	Registry  RegistryConfig  `yaml:"registry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional yaml file, applies environment overrides and
// validates. The environment contract (MPESA_*, PORT) always wins over the
// file so deployments can run without any config file at all.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Mpesa.ConsumerKey, "MPESA_CONSUMER_KEY")
	override(&c.Mpesa.ConsumerSecret, "MPESA_CONSUMER_SECRET")
	override(&c.Mpesa.ShortCode, "MPESA_SHORTCODE")
	override(&c.Mpesa.Passkey, "MPESA_PASSKEY")
	override(&c.Mpesa.CallbackURL, "MPESA_CALLBACK_URL")
	override(&c.Mpesa.BaseURL, "MPESA_BASE_URL")
	override(&c.Redis.URL, "REDIS_URL")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Mpesa.BaseURL == "" {
		c.Mpesa.BaseURL = "https://sandbox.safaricom.co.ke"
	}
	if c.Registry.Backend == "" {
		c.Registry.Backend = "memory"
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 5
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
}

// Validate fails fast on missing gateway configuration instead of letting a
// payment attempt proceed with undefined values.
func (c *Config) Validate() error {
	missing := ""
	switch {
	case c.Mpesa.ConsumerKey == "":
		missing = "MPESA_CONSUMER_KEY"
	case c.Mpesa.ConsumerSecret == "":
		missing = "MPESA_CONSUMER_SECRET"
	case c.Mpesa.ShortCode == "":
		missing = "MPESA_SHORTCODE"
	case c.Mpesa.Passkey == "":
		missing = "MPESA_PASSKEY"
	case c.Mpesa.CallbackURL == "":
		missing = "MPESA_CALLBACK_URL"
	}
	if missing != "" {
		return fmt.Errorf("%w: %s", domain.ErrMissingConfig, missing)
	}
	if c.Registry.Backend == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("%w: registry.backend=redis requires redis.url or REDIS_URL", domain.ErrMissingConfig)
	}
	if c.RateLimit.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("%w: rate_limit.enabled requires redis.url or REDIS_URL", domain.ErrMissingConfig)
	}
	return nil
}
