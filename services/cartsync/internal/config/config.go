package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Config holds all configuration for the cartsync service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`
	LogMaxSize  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`

	// HTTP server
	HTTPPort int `env:"CARTSYNC_HTTP_PORT" envDefault:"8012"`

	// Remote cart API
	CartAPIURL        string        `env:"CART_API_URL" envDefault:"http://localhost:8000"`
	CartAPITimeout    time.Duration `env:"CART_API_TIMEOUT" envDefault:"10s"`
	CartAPIMaxRetries int           `env:"CART_API_MAX_RETRIES" envDefault:"0"`

	// Circuit breaker around the cart API
	BreakerTimeout      time.Duration `env:"CART_API_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerFailureRatio float64       `env:"CART_API_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"CART_API_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Redis session store
	RedisAddr  string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass  string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB    int           `env:"REDIS_DB" envDefault:"0"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Consumer-facing session cookie, used when X-Session-ID is absent.
	SessionCookie string `env:"SESSION_COOKIE" envDefault:"session_id"`

	// Per-session managers
	ManagerIdleTTL       time.Duration `env:"MANAGER_IDLE_TTL" envDefault:"30m"`
	ManagerSweepInterval time.Duration `env:"MANAGER_SWEEP_INTERVAL" envDefault:"1m"`

	// Kafka. No brokers disables cart.synced events.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Rate limit on remote add
	AddRateLimitRPS   float64 `env:"ADD_RATE_LIMIT_RPS" envDefault:"5"`
	AddRateLimitBurst int     `env:"ADD_RATE_LIMIT_BURST" envDefault:"10"`

	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof allowlist. Empty disables the debug endpoints.
	PprofCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// DotenvFile is read before the environment is parsed. It is itself
	// taken from the process environment only.
	DotenvFile string `env:"CARTSYNC_DOTENV" envDefault:".env"`
}

// Load reads configuration from an optional dotenv file and environment variables.
func Load() (*Config, error) {
	boot := struct {
		DotenvFile string `env:"CARTSYNC_DOTENV" envDefault:".env"`
	}{}
	if err := pkgconfig.Load(&boot); err != nil {
		return nil, fmt.Errorf("load cartsync config: %w", err)
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg, boot.DotenvFile); err != nil {
		return nil, fmt.Errorf("load cartsync config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects settings the service cannot run with.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.CartAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CART_API_URL must be an absolute URL, got %q", c.CartAPIURL)
	}
	if c.CartAPITimeout <= 0 {
		return fmt.Errorf("CART_API_TIMEOUT must be positive, got %s", c.CartAPITimeout)
	}
	if c.CartAPIMaxRetries < 0 {
		return fmt.Errorf("CART_API_MAX_RETRIES must not be negative, got %d", c.CartAPIMaxRetries)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("CART_API_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.ManagerIdleTTL <= 0 || c.ManagerSweepInterval <= 0 {
		return fmt.Errorf("MANAGER_IDLE_TTL and MANAGER_SWEEP_INTERVAL must be positive")
	}
	if c.AddRateLimitRPS <= 0 {
		return fmt.Errorf("ADD_RATE_LIMIT_RPS must be positive, got %v", c.AddRateLimitRPS)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	return nil
}

// KafkaEnabled reports whether cart.synced events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
