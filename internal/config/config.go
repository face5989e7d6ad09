// Package config loads the server configuration from a YAML file overlaid with
// environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/MrEthical07/staffsync"
	"github.com/ilyakaznacheev/cleanenv"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config is the root server configuration. Sources, highest priority first:
//  1. the path given with --config;
//  2. the path in CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment variables only.
//
// Environment variables always overlay whatever the file set.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Security SecurityConfig `yaml:"security"`
	Storage  StorageConfig  `yaml:"storage"`
	Live     LiveConfig     `yaml:"live"`
	Audit    AuditConfig    `yaml:"audit"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Seed     SeedConfig     `yaml:"seed"`
}

type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds token and cookie settings.
type AuthConfig struct {
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TTL" env-default:"168h"`
	Issuer        string        `yaml:"issuer" env:"ISSUER" env-default:"staffsync"`
	Audience      string        `yaml:"audience" env:"AUDIENCE" env-default:"staffsync-api"`
	Leeway        time.Duration `yaml:"leeway" env:"LEEWAY" env-default:"0s"`
	AccessCookie  string        `yaml:"access_cookie" env:"ACCESS_COOKIE" env-default:"access_token"`
	RefreshCookie string        `yaml:"refresh_cookie" env:"REFRESH_COOKIE" env-default:"refresh_token"`

	// InsecureCookies drops the Secure attribute for plain-HTTP local setups.
	InsecureCookies bool `yaml:"insecure_cookies" env:"INSECURE_COOKIES"`
}

// SecurityConfig holds the throttling limits. They only apply with the redis
// backend.
type SecurityConfig struct {
	MaxLoginAttempts   int           `yaml:"max_login_attempts" env:"MAX_LOGIN_ATTEMPTS" env-default:"5"`
	LoginCooldown      time.Duration `yaml:"login_cooldown" env:"LOGIN_COOLDOWN" env-default:"15m"`
	IPThrottle         bool          `yaml:"ip_throttle" env:"IP_THROTTLE" env-default:"false"`
	MaxRefreshAttempts int           `yaml:"max_refresh_attempts" env:"MAX_REFRESH_ATTEMPTS" env-default:"20"`
	RefreshCooldown    time.Duration `yaml:"refresh_cooldown" env:"REFRESH_COOLDOWN" env-default:"1m"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
	MongoURL      string `yaml:"mongo_url" env:"MONGO_URL"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	KeyPrefix     string `yaml:"key_prefix" env:"KEY_PREFIX" env-default:"staffsync"`
}

type LiveConfig struct {
	QueueSize      int           `yaml:"queue_size" env:"LIVE_QUEUE_SIZE" env-default:"64"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"LIVE_WRITE_TIMEOUT" env-default:"5s"`
	OriginPatterns []string      `yaml:"origin_patterns" env:"LIVE_ORIGIN_PATTERNS"`
}

type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUDIT_ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"AUDIT_BUFFER_SIZE" env-default:"1024"`
}

type TimeoutConfig struct {
	Request  time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"10s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// SeedConfig creates an initial admin account at startup when both fields are
// set. It is meant for the memory backend and first-time setups.
type SeedConfig struct {
	AdminEmail    string `yaml:"admin_email" env:"SEED_ADMIN_EMAIL"`
	AdminPassword string `yaml:"admin_password" env:"SEED_ADMIN_PASSWORD"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. See Config for the lookup order.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
		return &cfg, cfg.validate()
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendMongo:
		if c.Storage.MongoURL == "" {
			return fmt.Errorf("storage backend %q requires mongo_url", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if (c.Seed.AdminEmail == "") != (c.Seed.AdminPassword == "") {
		return fmt.Errorf("seed admin_email and admin_password must be set together")
	}
	return nil
}

// EngineConfig maps the server settings onto the engine configuration.
func (c *Config) EngineConfig() staffsync.Config {
	out := staffsync.DefaultConfig()
	out.JWT.AccessSecret = []byte(c.Auth.AccessSecret)
	out.JWT.RefreshSecret = []byte(c.Auth.RefreshSecret)
	out.JWT.AccessTTL = c.Auth.AccessTTL
	out.JWT.RefreshTTL = c.Auth.RefreshTTL
	out.JWT.Issuer = c.Auth.Issuer
	out.JWT.Audience = c.Auth.Audience
	out.JWT.Leeway = c.Auth.Leeway

	out.Security.RateLimitPrefix = c.Storage.KeyPrefix + ":rl"
	out.Security.EnableIPThrottle = c.Security.IPThrottle
	out.Security.MaxLoginAttempts = c.Security.MaxLoginAttempts
	out.Security.LoginCooldownDuration = c.Security.LoginCooldown
	out.Security.MaxRefreshAttempts = c.Security.MaxRefreshAttempts
	out.Security.RefreshCooldownDuration = c.Security.RefreshCooldown

	out.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		out.Audit.BufferSize = c.Audit.BufferSize
	}
	return out
}
