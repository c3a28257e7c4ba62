package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecclesia-hub/admin-client/internal/activity"
	"github.com/ecclesia-hub/admin-client/internal/capability"
	"github.com/ecclesia-hub/admin-client/internal/config"
	"github.com/ecclesia-hub/admin-client/internal/credential"
	"github.com/ecclesia-hub/admin-client/internal/event"
	"github.com/ecclesia-hub/admin-client/internal/gate"
	handler "github.com/ecclesia-hub/admin-client/internal/handler/http"
	"github.com/ecclesia-hub/admin-client/internal/remote"
	"github.com/ecclesia-hub/admin-client/internal/repository"
	"github.com/ecclesia-hub/admin-client/internal/repository/memory"
	"github.com/ecclesia-hub/admin-client/internal/repository/postgres"
	redisrepo "github.com/ecclesia-hub/admin-client/internal/repository/redis"
	"github.com/ecclesia-hub/admin-client/internal/session"
	"github.com/ecclesia-hub/admin-client/pkg/database"
	"github.com/ecclesia-hub/admin-client/pkg/health"
	"github.com/ecclesia-hub/admin-client/pkg/httpclient"
	pkgkafka "github.com/ecclesia-hub/admin-client/pkg/kafka"
	"github.com/ecclesia-hub/admin-client/pkg/middleware"
	"github.com/ecclesia-hub/admin-client/pkg/tracing"
)

// App wires together all dependencies and runs the admin client.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	session        *session.Container
	monitor        *activity.Monitor
	producer       *pkgkafka.Producer
	closeBackend   func()
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Open the credential backend.
	kv, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store := credential.NewStore(kv, cfg.CredentialNamespace, logger)

	// Remote API client with retries and a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.APITimeout
	httpCfg.MaxRetries = cfg.APIMaxRetries
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig(remote.ServiceName),
		logger,
	)
	api := remote.NewClient(breaker, cfg.APIBaseURL, logger)

	// Session lifecycle events.
	var (
		producer *pkgkafka.Producer
		events   session.EventPublisher = event.Nop{}
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Info("kafka brokers not configured, session events disabled")
	}

	// Build the dependency graph.
	container := session.NewContainer(api, store, events, logger)
	resolver := capability.NewResolver(capability.WithOverrideRole(cfg.CapabilityOverrideRole))
	if resolver.Overridden() {
		logger.Warn("capability override active, every signed-in user resolves to the override role",
			slog.String("role", cfg.CapabilityOverrideRole),
		)
	}
	bus := activity.NewBus()
	monitor := activity.NewMonitor(bus, store, container, activity.Config{
		SweepInterval: cfg.ActivitySweepInterval,
		TouchInterval: cfg.ActivityTouchInterval,
	}, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("credential_store", store.Ping)
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.AllowCredentials = true
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.Deps{
		Session:     container,
		Diagnostics: store,
		Resolver:    resolver,
		Gate:        gate.New(container, logger),
		Bus:         bus,
		Health:      healthHandler,
		Identity:    container.Identity,
		CORS:        corsCfg,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.APITimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		session:        container,
		monitor:        monitor,
		producer:       producer,
		closeBackend:   closeBackend,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// openBackend connects the configured key-value store for credentials.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.KeyValueStore, func(), error) {
	switch cfg.CredentialBackend {
	case config.BackendMemory:
		logger.Warn("credentials are kept in memory and will not survive a restart")
		return memory.NewStore(), func() {}, nil

	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr), slog.Int("db", cfg.RedisDB))
		return redisrepo.NewStore(client), func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		database.SetSlowQueryLogging(cfg.PostgresSlowQuery, logger)

		store := postgres.NewStore(pool)
		if err := store.Migrate(ctx, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "credentials"); err != nil {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}

// Run starts the HTTP server, restores the session and follows activity
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Screens answer "loading" until restoration finishes.
	go a.session.Restore(ctx)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		if err := a.monitor.Run(monitorCtx); err != nil {
			a.logger.Error("activity monitor stopped", slog.String("error", err.Error()))
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopMonitor()
	<-monitorDone

	if err := a.Shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Session container (wait for background work)
// 3. Tracer (flush pending spans)
// 4. Kafka producer
// 5. Credential backend
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Let background remote logouts and tenant fetches finish (5s budget).
	sessCtx, sessCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sessCancel()
	if err := a.session.Close(sessCtx); err != nil {
		a.logger.Error("session close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Flush pending spans after the session settles so its spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close the credential backend.
	a.closeBackend()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.Info("application shutdown complete")
	return nil
}
