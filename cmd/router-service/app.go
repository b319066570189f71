package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"

	"replybot/internal/admin"
	"replybot/internal/config"
	"replybot/internal/config_handler"
	"replybot/internal/constants"
	"replybot/internal/gateway"
	"replybot/internal/logger"
	"replybot/internal/onebot"
	"replybot/internal/outcome"
	"replybot/internal/policy"
	"replybot/internal/ratelimit"
	"replybot/internal/router"
	"replybot/internal/rules"
	"replybot/internal/store"
	"replybot/pkg/bootstrap"
	"replybot/pkg/cel"
	"replybot/pkg/circuitbreaker"
	"replybot/pkg/health"
	"replybot/pkg/logging"
	"replybot/pkg/metrics"
	"replybot/pkg/middleware"
	"replybot/pkg/migrations"
	"replybot/pkg/models"
	"replybot/pkg/tracing"
)

const serviceName = "router-service"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	db             *sql.DB
	mongoClient    *mongo.Client
	tracerProvider *tracing.TracerProvider
	server         *http.Server

	gateway      *gateway.Manager
	router       *router.Router
	outcomes     *outcome.AsyncSink
	invalidation *config_handler.Handler
	limiters     map[string]admin.Throttle
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterRouterMetrics()
	metrics.RegisterGatewayMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterStorageMetrics()
	metrics.RegisterAdminMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initPipeline(ctx); err != nil {
		return fmt.Errorf("failed to initialize routing pipeline: %w", err)
	}

	a.initHTTPServer(ctx)
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("database.postgres is required: rules and conversations are stored there")
	}
	a.db = db

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	return nil
}

func (a *App) mongoDatabase() *mongo.Database {
	name := a.Config.Database.MongoDB.Database
	if name == "" {
		name = constants.DefaultMongoDBName
	}
	return a.mongoClient.Database(name)
}

func (a *App) initPipeline(ctx context.Context) error {
	cfg := a.Config
	initCtx := logging.WithServiceName(ctx, serviceName)

	location := time.Local
	if cfg.Policy.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Policy.Timezone)
		if err != nil {
			return fmt.Errorf("failed to load timezone %q: %w", cfg.Policy.Timezone, err)
		}
		location = loc
	}

	shared := store.NewCircuitBreakerStore(
		store.NewRedisStore(a.redis, cfg.Database.Redis.KeyPrefix),
		cfg.CircuitBreaker,
	)
	senderLimiter := ratelimit.NewLimiter(shared, "sender", constants.KeyPrefixSenderRateLimit,
		time.Duration(cfg.Router.RateLimit.WindowSeconds)*time.Second,
		cfg.Router.RateLimit.MaxRequests,
		a.Logger,
		ratelimit.WithFallback(cfg.Router.Fallback.OnStoreError),
	)
	ruleLimiter := ratelimit.NewLimiter(shared, "rule", constants.KeyPrefixRuleRateLimit, time.Minute, 1, a.Logger,
		ratelimit.WithFallback(cfg.Router.Fallback.OnStoreError),
	)
	a.limiters = map[string]admin.Throttle{
		"sender": senderLimiter,
		"rule":   ruleLimiter,
	}

	client := onebot.NewClient(cfg.Gateway.APIURL, cfg.Gateway.AccessToken,
		circuitbreaker.FromConfig("onebot", cfg.CircuitBreaker), a.Logger)

	identity := rules.NewIdentity(client.SelfID)
	if cfg.Gateway.SelfID != "" {
		identity.Observe(cfg.Gateway.SelfID)
	}

	conditions, err := cel.NewEvaluator(location)
	if err != nil {
		return fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	ruleRepo := rules.NewCachedRepository(rules.NewRepository(a.db), cfg.Rules.CacheTTL)
	engine := rules.NewEngine(ruleRepo, identity, conditions, a.Logger)

	roles := policy.NewRedisRoleCache(a.redis, cfg.Database.Redis.KeyPrefix, cfg.Policy.RoleCacheTTL, client, a.Logger)
	chain := policy.NewChain(ruleLimiter, shared, roles, location, a.Logger)

	deps := router.Deps{
		Throttle: senderLimiter,
		Rules:    engine,
		Chain:    chain,
		Sender:   client,
		Renderer: router.NewRenderer(location),
	}

	var policyCache config_handler.PolicyCache
	if a.mongoClient != nil {
		mongoDB := a.mongoDatabase()
		if err := migrations.EnsurePolicyIndexes(ctx, mongoDB, constants.PoliciesCollection); err != nil {
			return fmt.Errorf("failed to ensure policy indexes: %w", err)
		}
		policies := policy.NewCachedRepository(policy.NewRepository(mongoDB), cfg.Policy.CacheTTL)
		deps.Policies = policies
		policyCache = policies
	} else {
		a.Logger.WarnwCtx(initCtx, "MongoDB not configured, rule policies are disabled")
	}

	sink, err := a.buildOutcomeSink()
	if err != nil {
		return err
	}
	if sink != nil {
		a.outcomes = outcome.NewAsyncSink(sink, cfg.OutcomeLog.BufferSize, a.Logger)
		deps.Sink = a.outcomes
	}

	a.router = router.NewRouter(deps, router.OptionsFromConfig(cfg.Router), a.Logger)
	a.invalidation = config_handler.NewHandler(ruleRepo, policyCache, a.Logger)

	a.gateway = gateway.NewManager(
		gateway.OptionsFromConfig(cfg.Gateway),
		gateway.NewWebSocketDialer(cfg.Gateway.HandshakeTimeout),
		gateway.OneBotDecoder{},
		func(event models.InboundEvent) { a.router.Submit(event) },
		a.Logger,
	)

	a.Logger.InfowCtx(initCtx, "Routing pipeline initialized",
		"timezone", location.String(),
		"workers", cfg.Router.Workers,
		"sinks", cfg.OutcomeLog.Sinks,
	)
	return nil
}

func (a *App) buildOutcomeSink() (outcome.Sink, error) {
	var sinks outcome.MultiSink
	for _, name := range a.Config.OutcomeLog.Sinks {
		switch strings.ToLower(name) {
		case constants.SinkKafka:
			sinks = append(sinks, outcome.NewKafkaSink(a.Producer, a.Config.Broker.Kafka.OutcomeTopic, serviceName))
		case constants.SinkPostgres:
			sinks = append(sinks, outcome.NewPostgresSink(a.db))
		default:
			return nil, fmt.Errorf("unknown outcome sink %q", name)
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

func (a *App) initHTTPServer(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	if a.Config.Tracing.Enabled {
		engine.Use(tracing.GinMiddleware(a.tracerProvider.ServiceName()))
	}
	engine.Use(middleware.RecoveryMiddleware(a.Logger))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggerMiddleware(a.Logger))

	if a.Config.Admin.RateLimit.Enabled {
		limits := a.Config.Admin.RateLimit
		rateLimitConfig := middleware.DefaultRateLimitConfig()
		if limits.RPS > 0 {
			rateLimitConfig.RPS = limits.RPS
		}
		if limits.Burst > 0 {
			rateLimitConfig.Burst = limits.Burst
		}
		if limits.CleanupInterval > 0 {
			rateLimitConfig.CleanupInterval = time.Duration(limits.CleanupInterval) * time.Second
		}
		if limits.MaxAge > 0 {
			rateLimitConfig.MaxAge = time.Duration(limits.MaxAge) * time.Second
		}
		engine.Use(middleware.RateLimitMiddleware(ctx, rateLimitConfig))
	}

	admin.NewHandler(a.gateway, a.limiters, a.invalidation, a.Logger).RegisterRoutes(engine)
	registerDocs(engine)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redis))
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}
	healthRegistry.Register(health.NewGatewayChecker(a.gateway))

	engine.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      engine,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// registerDocs serves the admin API's OpenAPI document and Swagger UI.
func registerDocs(engine *gin.Engine) {
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Run serves until ctx is cancelled or the gateway gives up reconnecting,
// then shuts everything down in dependency order.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.router.Run(gCtx)
	})

	g.Go(func() error {
		topic := a.Config.Broker.Kafka.ConfigUpdateTopic
		a.Logger.InfowCtx(gCtx, "Starting config update event consumer", "topic", topic)
		err := a.Consumer.Consume(gCtx, topic, a.invalidation.HandleConfigUpdateEvent)
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("config update consumer: %w", err)
		}
		return nil
	})

	// The gateway is stopped by the shutdown goroutine below, not by ctx.
	if err := a.gateway.Start(context.WithoutCancel(ctx)); err != nil {
		g.Go(func() error { return err })
	}

	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case err := <-a.gateway.Fatal():
				if a.Config.Gateway.ExitOnExhausted {
					return err
				}
				a.Logger.ErrorwCtx(gCtx, "Gateway reconnection exhausted, waiting for manual reconnect", "error", err)
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.Logger.WarnwCtx(shutdownCtx, "HTTP server shutdown error", "error", err)
		}
		if err := a.gateway.Shutdown(shutdownCtx); err != nil {
			a.Logger.WarnwCtx(shutdownCtx, "Gateway shutdown error", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if shutdownErr := a.Shutdown(ctx); shutdownErr != nil {
		err = stderrors.Join(err, shutdownErr)
	}
	return err
}

// Shutdown releases everything the router still holds after the gateway
// and HTTP server stopped: queued outcomes, the broker and the databases.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down router service")

	// Queued outcomes are drained before the producer they publish to is
	// closed.
	drain := func(ctx context.Context) []error {
		if a.outcomes == nil {
			return nil
		}
		drainCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer cancel()
		if err := a.outcomes.Close(drainCtx); err != nil {
			return []error{fmt.Errorf("outcome sink close error: %w", err)}
		}
		return nil
	}

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		ctx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer cancel()

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(context.WithoutCancel(ctx), drain, additionalShutdown)
}
