package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// Processor and identity drivers.
const (
	DriverMock     = "mock"
	DriverStripe   = "stripe"
	DriverFirebase = "firebase"
)

const (
	minSessionSecretLen = 32
	devSessionSecret    = "dev-only-session-secret-change-me-now"
	checkoutRemoteCalls = 2
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// PostgreSQL (checkout audit log)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (sessions, carts, checkout lock)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Payment
	PaymentPublishableKey string `env:"PAYMENT_PUBLISHABLE_KEY" envDefault:"pk_test_storefront"`
	PaymentBackendURL     string `env:"PAYMENT_BACKEND_URL" envDefault:"http://localhost:4242/create-checkout-session"`
	ProcessorDriver       string `env:"PROCESSOR_DRIVER" envDefault:"mock"`
	ProcessorAPIURL       string `env:"PROCESSOR_API_URL" envDefault:"https://api.stripe.com"`

	// Identity provider
	IdentityDriver     string `env:"IDENTITY_DRIVER" envDefault:"mock"`
	IdentityAPIURL     string `env:"IDENTITY_API_URL" envDefault:"https://identitytoolkit.googleapis.com"`
	IdentityAPIKey     string `env:"IDENTITY_API_KEY"`
	IdentityRequestURI string `env:"IDENTITY_REQUEST_URI" envDefault:"http://localhost:3000"`

	// Sessions and carts
	SessionSecret       string        `env:"SESSION_SECRET" envDefault:"dev-only-session-secret-change-me-now"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"sf_session"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	CartTTL             time.Duration `env:"CART_TTL" envDefault:"168h"`
	CheckoutLockTTL     time.Duration `env:"CHECKOUT_LOCK_TTL" envDefault:"2m"`

	// Login throttling, per client IP
	LoginRateLimitRPS   float64 `env:"LOGIN_RATE_LIMIT_RPS" envDefault:"1"`
	LoginRateLimitBurst int     `env:"LOGIN_RATE_LIMIT_BURST" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Per-request timeout for third-party calls
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"30s"`

	// Circuit breaker settings for third-party calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}

	if c.PaymentPublishableKey == "" {
		return fmt.Errorf("PAYMENT_PUBLISHABLE_KEY is required")
	}
	switch c.ProcessorDriver {
	case DriverMock:
	case DriverStripe:
		if !strings.HasPrefix(c.PaymentPublishableKey, "pk_") {
			return fmt.Errorf("PAYMENT_PUBLISHABLE_KEY must be a publishable key (pk_...)")
		}
	default:
		return fmt.Errorf("PROCESSOR_DRIVER must be %q or %q, got %q", DriverStripe, DriverMock, c.ProcessorDriver)
	}
	switch c.IdentityDriver {
	case DriverMock:
	case DriverFirebase:
		if c.IdentityAPIKey == "" {
			return fmt.Errorf("IDENTITY_API_KEY is required with IDENTITY_DRIVER=%s", DriverFirebase)
		}
	default:
		return fmt.Errorf("IDENTITY_DRIVER must be %q or %q, got %q", DriverFirebase, DriverMock, c.IdentityDriver)
	}

	for name, rawURL := range map[string]string{
		"PAYMENT_BACKEND_URL":  c.PaymentBackendURL,
		"PROCESSOR_API_URL":    c.ProcessorAPIURL,
		"IDENTITY_API_URL":     c.IdentityAPIURL,
		"IDENTITY_REQUEST_URI": c.IdentityRequestURI,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}

	if len(c.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLen)
	}
	if c.Environment == "production" {
		if c.SessionSecret == devSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		if c.ProcessorDriver == DriverMock || c.IdentityDriver == DriverMock {
			return fmt.Errorf("mock drivers are not allowed in production")
		}
	}
	if c.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME is required")
	}
	for name, d := range map[string]time.Duration{
		"SESSION_TTL":         c.SessionTTL,
		"CART_TTL":            c.CartTTL,
		"CHECKOUT_LOCK_TTL":   c.CheckoutLockTTL,
		"HTTP_CLIENT_TIMEOUT": c.HTTPClientTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	// A checkout makes two sequential third-party calls while holding the lock.
	if c.CheckoutLockTTL <= checkoutRemoteCalls*c.HTTPClientTimeout {
		return fmt.Errorf("CHECKOUT_LOCK_TTL (%s) must exceed %d x HTTP_CLIENT_TIMEOUT (%s)",
			c.CheckoutLockTTL, checkoutRemoteCalls, c.HTTPClientTimeout)
	}
	if c.LoginRateLimitRPS <= 0 || c.LoginRateLimitBurst < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_RPS and LOGIN_RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Postgres returns the pool settings for the audit database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the client settings for the session store.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	rc.PoolSize = c.RedisPoolSize
	return rc
}

// CircuitBreaker returns breaker settings named name.
func (c *Config) CircuitBreaker(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}
