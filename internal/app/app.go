package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/identity"
	"github.com/utafrali/storefront/internal/identity/firebase"
	idmock "github.com/utafrali/storefront/internal/identity/mock"
	"github.com/utafrali/storefront/internal/processor"
	procmock "github.com/utafrali/storefront/internal/processor/mock"
	"github.com/utafrali/storefront/internal/processor/stripe"
	"github.com/utafrali/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/tracing"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	processor      *processor.Promise
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool for the checkout audit log.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("register pool metrics", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis for sessions, carts and the checkout lock.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Third-party calls are made exactly once, each behind its own breaker.
	clientCfg := httpclient.SingleAttempt(httpclient.DefaultConfig())
	clientCfg.Timeout = cfg.HTTPClientTimeout
	baseClient := httpclient.New(clientCfg)
	backendDoer := httpclient.NewCircuitBreakerClient(baseClient, cfg.CircuitBreaker("payment-backend"), logger).
		WithFallback(func(_ context.Context, err error) (*http.Response, error) {
			return nil, fmt.Errorf("payment backend unavailable: %w", err)
		})
	processorDoer := httpclient.NewCircuitBreakerClient(baseClient, cfg.CircuitBreaker("payment-processor"), logger)
	identityDoer := httpclient.NewCircuitBreakerClient(baseClient, cfg.CircuitBreaker("identity-provider"), logger)
	logger.Info("circuit breakers initialized",
		slog.Uint64("max_requests", uint64(cfg.CBMaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cfg.CBMinRequests)),
	)

	var loader processor.Loader
	switch cfg.ProcessorDriver {
	case config.DriverStripe:
		loader = stripe.NewLoader(processorDoer, cfg.ProcessorAPIURL, logger)
	default:
		loader = procmock.New()
	}
	promise := processor.NewPromise(loader, cfg.PaymentPublishableKey, logger)

	var provider identity.Provider
	switch cfg.IdentityDriver {
	case config.DriverFirebase:
		provider = firebase.New(identityDoer, firebase.Config{
			BaseURL:    cfg.IdentityAPIURL,
			APIKey:     cfg.IdentityAPIKey,
			RequestURI: cfg.IdentityRequestURI,
		}, logger)
	default:
		provider = idmock.New()
	}
	logger.Info("external drivers selected",
		slog.String("processor", cfg.ProcessorDriver),
		slog.String("identity", cfg.IdentityDriver),
	)

	// Build the dependency graph.
	sessions := redisrepo.NewSessionRepository(redisClient, cfg.SessionTTL)
	carts := redisrepo.NewCartRepository(redisClient, cfg.CartTTL)
	lock := redisrepo.NewCheckoutLock(redisClient, cfg.CheckoutLockTTL)
	attempts := postgres.NewAttemptRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	cartService := service.NewCartService(carts, logger)
	checkoutService := service.NewCheckoutService(
		lock,
		sessions,
		cartService,
		promise,
		backend.NewClient(backendDoer, cfg.PaymentBackendURL, logger),
		attempts,
		eventProducer,
		logger,
	)
	authService := service.NewAuthService(provider, sessions, eventProducer, logger)

	sessionMiddleware := session.NewMiddleware(
		session.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL),
		sessions,
		session.CookieConfig{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure},
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("payment-processor", func(context.Context) error {
		if !promise.Ready() {
			return errors.New("processor client not loaded")
		}
		return nil
	})

	// HTTP router.
	router := handler.NewRouter(cartService, checkoutService, authService, sessionMiddleware, healthHandler, logger,
		handler.RouterConfig{
			AllowedOrigins:      cfg.CORSAllowedOrigins,
			PprofAllowedCIDRs:   cfg.PprofAllowedCIDRs,
			LoginRateLimitRPS:   cfg.LoginRateLimitRPS,
			LoginRateLimitBurst: cfg.LoginRateLimitBurst,
		},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		processor:      promise,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the processor client load and the HTTP server, and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.processor.Start(context.WithoutCancel(ctx))

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
