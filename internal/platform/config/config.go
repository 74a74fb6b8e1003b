// Package config loads console configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const devTokenSecret = "dev-token-secret-change-in-production"

// Config holds console configuration loaded from the environment.
type Config struct {
	// Addr is the address the console HTTP server listens on.
	Addr string `mapstructure:"MILKADMIN_ADDR"`
	// Environment is "development", "production", ...
	Environment string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// TrustedProxies is a comma-separated CIDR list allowed to set X-Forwarded-For.
	TrustedProxies  string        `mapstructure:"TRUSTED_PROXIES"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	// PageSize is the default table page size for every entity view.
	PageSize int `mapstructure:"PAGE_SIZE"`
	// NotificationLimit bounds the in-memory notification feed.
	NotificationLimit int `mapstructure:"NOTIFICATION_LIMIT"`
	// MetricsToken, when set, must be sent as X-Metrics-Token to read /metrics.
	MetricsToken string `mapstructure:"METRICS_TOKEN"`

	Backend BackendConfig `mapstructure:",squash"`
	Session SessionConfig `mapstructure:",squash"`
	Redis   RedisConfig   `mapstructure:",squash"`
}

// BackendConfig describes the shop REST backend.
type BackendConfig struct {
	// BaseURL is the API root every endpoint path is joined to.
	BaseURL string        `mapstructure:"BACKEND_BASE_URL"`
	Timeout time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	// BreakerThreshold is the count of consecutive transport failures that opens the circuit.
	BreakerThreshold int `mapstructure:"BACKEND_BREAKER_THRESHOLD"`
}

// SessionConfig selects where operator tokens are persisted.
type SessionConfig struct {
	// TokenStore is "file", "redis" or "memory".
	TokenStore string `mapstructure:"TOKEN_STORE"`
	TokenFile  string `mapstructure:"TOKEN_FILE"`
	// TokenSecret keys the encrypted token file.
	TokenSecret string `mapstructure:"TOKEN_SECRET"`
	// LoginRatePerMinute and LoginBurst throttle login attempts per client IP.
	LoginRatePerMinute int `mapstructure:"LOGIN_RATE_PER_MINUTE"`
	LoginBurst         int `mapstructure:"LOGIN_BURST"`
}

// RedisConfig configures the optional Redis token store.
type RedisConfig struct {
	URL          string        `mapstructure:"REDIS_URL"`
	KeyPrefix    string        `mapstructure:"REDIS_KEY_PREFIX"`
	PoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MILKADMIN_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("NOTIFICATION_LIMIT", 50)
	v.SetDefault("METRICS_TOKEN", "")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:8081/api/v1/")
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("BACKEND_BREAKER_THRESHOLD", 5)

	v.SetDefault("TOKEN_STORE", "file")
	v.SetDefault("TOKEN_FILE", ".milkadmin-session")
	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("LOGIN_BURST", 5)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_KEY_PREFIX", "milkadmin:session")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 1)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("config: MILKADMIN_ADDR must be set")
	}
	if c.Backend.BaseURL == "" {
		return errors.New("config: BACKEND_BASE_URL must be set")
	}
	if c.PageSize <= 0 {
		return errors.New("config: PAGE_SIZE must be positive")
	}
	switch c.Session.TokenStore {
	case "memory":
	case "file":
		if c.Session.TokenSecret == "" {
			if c.IsProduction() {
				return errors.New("config: TOKEN_SECRET must be set when APP_ENV=production")
			}
			c.Session.TokenSecret = devTokenSecret
		}
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("config: REDIS_URL must be set when TOKEN_STORE=redis")
		}
	default:
		return fmt.Errorf("config: unknown TOKEN_STORE %q", c.Session.TokenStore)
	}
	if c.Backend.BreakerThreshold <= 0 {
		c.Backend.BreakerThreshold = 5
	}
	return nil
}

// IsProduction reports whether the console runs with production safeguards.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// TrustedProxyList returns the trusted proxy CIDRs from the comma-separated config.
func (c *Config) TrustedProxyList() []string {
	if c == nil || c.TrustedProxies == "" {
		return nil
	}
	return strings.Split(c.TrustedProxies, ",")
}
