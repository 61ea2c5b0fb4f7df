package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/cartsync/internal/config"
	"github.com/utafrali/storefront/services/cartsync/internal/event"
	handler "github.com/utafrali/storefront/services/cartsync/internal/handler/http"
	"github.com/utafrali/storefront/services/cartsync/internal/manager"
	"github.com/utafrali/storefront/services/cartsync/internal/remote"
	"github.com/utafrali/storefront/services/cartsync/internal/session"
)

// tokenLeeway treats tokens about to expire as already expired.
const tokenLeeway = 30 * time.Second

// App wires together all dependencies and runs the cartsync service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	registry       *manager.Registry
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Tracing. The propagator is installed even when export is off.
	tcfg := tracing.DefaultConfig(handler.ServiceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.Insecure = cfg.OTELInsecure
	tcfg.SampleRate = cfg.OTELSampleRate
	tracerShutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis client.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = tracerShutdown(ctx)
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	store := session.NewRedisStore(rdb, cfg.SessionTTL)

	// Cart API client.
	rcfg := remote.DefaultConfig(cfg.CartAPIURL)
	rcfg.Timeout = cfg.CartAPITimeout
	rcfg.MaxRetries = cfg.CartAPIMaxRetries
	rcfg.Breaker.Timeout = cfg.BreakerTimeout
	rcfg.Breaker.FailureRatio = cfg.BreakerFailureRatio
	rcfg.Breaker.MinRequests = cfg.BreakerMinRequests
	cartAPI := remote.New(rcfg, logger)

	// Kafka producer, only when brokers are configured.
	opts := []manager.Option{manager.WithLogger(logger)}
	var producer *pkgkafka.Producer
	if cfg.KafkaEnabled() {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		opts = append(opts, manager.WithNotifier(event.NewProducer(producer, logger)))
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("kafka disabled, cart.synced events are not published")
	}

	// Per-session managers. A session's credential is the one forwarded on
	// the request, else the one stored at login.
	registry := manager.NewRegistry(cartAPI, func(sessionID string) session.Provider {
		return session.NewExpiryGuard(
			session.Chain(session.Forwarded(sessionID), store.ForSession(sessionID)),
			tokenLeeway,
		)
	}, cfg.ManagerIdleTTL, opts...)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", store.Ping)
	healthHandler.RegisterNonCritical("cart-api", cartAPI.Healthy)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// HTTP router.
	limiter := middleware.NewRateLimiter(cfg.AddRateLimitRPS, cfg.AddRateLimitBurst, nil, logger)
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins

	cartHandler := handler.NewCartHandler(registry, store, logger)
	router := handler.NewRouter(cartHandler, healthHandler, logger, handler.RouterConfig{
		SessionCookie: cfg.SessionCookie,
		CORS:          cors,
		PprofCIDRs:    cfg.PprofCIDRs,
		AddLimiter:    limiter,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		producer:       producer,
		registry:       registry,
		limiter:        limiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the idle-session sweeper and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.registry.Run(ctx, a.cfg.ManagerSweepInterval)

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
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// In-flight syncs are discarded once their manager is closed.
	a.registry.Close()
	a.limiter.Close()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
