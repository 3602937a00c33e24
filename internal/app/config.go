package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Cache backends accepted by JOURNAL_CACHE_BACKEND.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds runtime configuration for the server and the client agent.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":5000"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	DataFile       string `envconfig:"JOURNAL_DATA_FILE" default:"backend/reflections.json"`
	RateLimit      int    `envconfig:"JOURNAL_RATE_LIMIT" default:"120"`
	WriteRateLimit int    `envconfig:"JOURNAL_WRITE_RATE_LIMIT" default:"30"`

	ServerURL   string        `envconfig:"JOURNAL_SERVER_URL" default:"http://127.0.0.1:5000"`
	StatePath   string        `envconfig:"JOURNAL_STATE_PATH"`
	HTTPTimeout time.Duration `envconfig:"JOURNAL_HTTP_TIMEOUT" default:"10s"`

	CacheBackend string `envconfig:"JOURNAL_CACHE_BACKEND" default:"memory"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	CacheVersion string `envconfig:"JOURNAL_CACHE_VERSION" default:"v1"`

	ProbeInterval   time.Duration `envconfig:"JOURNAL_PROBE_INTERVAL" default:"5s"`
	SyncDebounce    time.Duration `envconfig:"JOURNAL_SYNC_DEBOUNCE" default:"1s"`
	SyncMaxAttempts int           `envconfig:"JOURNAL_SYNC_MAX_ATTEMPTS" default:"5"`
	SyncBackoffBase time.Duration `envconfig:"JOURNAL_SYNC_BACKOFF_BASE" default:"2s"`
	SyncBackoffMax  time.Duration `envconfig:"JOURNAL_SYNC_BACKOFF_MAX" default:"5m"`
	ProxyAddr       string        `envconfig:"JOURNAL_PROXY_ADDR" default:"127.0.0.1:5050"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the binaries cannot run with.
func (c *Config) Validate() error {
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q (want memory or redis)", c.CacheBackend)
	}
	if c.SyncMaxAttempts <= 0 {
		return errors.New("sync max attempts must be positive")
	}
	if c.RateLimit < 0 || c.WriteRateLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	if strings.TrimSpace(c.DataFile) == "" {
		return errors.New("data file must be provided")
	}
	if strings.TrimSpace(c.CacheVersion) == "" {
		return errors.New("cache version must be provided")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server url %q must be an absolute URL", c.ServerURL)
	}
	return nil
}

// ServerBase returns the parsed JOURNAL_SERVER_URL.
func (c *Config) ServerBase() *url.URL {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return &url.URL{Scheme: "http", Host: "127.0.0.1:5000"}
	}
	return u
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
