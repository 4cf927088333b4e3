package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Backend BackendConfig
	Session SessionConfig
	Auth    AuthConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Audit   AuditConfig
}

type BackendConfig struct {
	URL     string        `env:"BACKEND_URL,     default=http://localhost:3000"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT, default=10s"`
}

type SessionConfig struct {
	IdleTimeout  time.Duration `env:"SESSION_IDLE_TIMEOUT, default=30m"`
	AccessTTL    time.Duration `env:"SESSION_ACCESS_TTL,   default=1h"`
	RefreshTTL   time.Duration `env:"SESSION_REFRESH_TTL,  default=168h"`
	CookieName   string        `env:"SESSION_COOKIE,       default=console_sid"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE, default=false"`
}

// AuthConfig throttles auth submissions per client address. TrustProxy reads
// the address from X-Forwarded-For; enable it only behind a proxy that sets it.
type AuthConfig struct {
	RatePerSecond float64 `env:"AUTH_RATE,        default=1"`
	Burst         int     `env:"AUTH_BURST,       default=5"`
	TrustProxy    bool    `env:"AUTH_TRUST_PROXY, default=false"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=backoffice_console"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

// IsDevelopment reports whether the console runs with developer defaults
// (pretty logs, insecure cookies allowed).
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must be positive"))
	}
	if c.Session.AccessTTL <= 0 || c.Session.RefreshTTL <= 0 {
		errs = append(errs, errors.New("session TTLs must be positive"))
	}
	if c.Session.RefreshTTL < c.Session.AccessTTL {
		errs = append(errs, errors.New("SESSION_REFRESH_TTL must not be shorter than SESSION_ACCESS_TTL"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("SESSION_COOKIE must not be empty"))
	}
	if !c.IsDevelopment() && !c.Session.CookieSecure {
		errs = append(errs, fmt.Errorf("SESSION_COOKIE_SECURE is required outside development (ENV=%s)", c.Env))
	}
	return errors.Join(errs...)
}
