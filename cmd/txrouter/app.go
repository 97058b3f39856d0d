package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/openhie/txrouter/internal/broker"
	"github.com/openhie/txrouter/internal/channelstore"
	"github.com/openhie/txrouter/internal/config"
	"github.com/openhie/txrouter/internal/config_handler"
	"github.com/openhie/txrouter/internal/constants"
	"github.com/openhie/txrouter/internal/logger"
	"github.com/openhie/txrouter/internal/management"
	"github.com/openhie/txrouter/internal/router"
	"github.com/openhie/txrouter/pkg/bootstrap"
	"github.com/openhie/txrouter/pkg/health"
	"github.com/openhie/txrouter/pkg/logging"
	"github.com/openhie/txrouter/pkg/metrics"
	"github.com/openhie/txrouter/pkg/middleware"
	"github.com/openhie/txrouter/pkg/migrations"
	"github.com/openhie/txrouter/pkg/models"
	"github.com/openhie/txrouter/pkg/ratelimit"
	"github.com/openhie/txrouter/pkg/tracing"
)

const serviceName = "txrouter"

// App wires the admin API, the config-update consumer, and the
// dispatch engine's inbound gin handler behind one HTTP server.
type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	mongoDB        *mongo.Database
	channelRepo    management.Repository
	channelStore   *channelstore.Store
	tracerProvider *tracing.TracerProvider
	server         *http.Server
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
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterRouterMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterManagementMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if a.mongoDB != nil {
		if err := management.EnsureIndexes(ctx, a.mongoDB); err != nil {
			initCtx := logging.WithServiceName(ctx, serviceName)
			a.Logger.WarnwCtx(initCtx, "Failed to ensure management indexes", "error", err)
		}
		if err := migrations.EnsureTransactionIndexes(ctx, a.mongoDB); err != nil {
			initCtx := logging.WithServiceName(ctx, serviceName)
			a.Logger.WarnwCtx(initCtx, "Failed to ensure transaction indexes", "error", err)
		}
	}

	a.channelRepo = management.NewRepository(a.mongoDB)
	a.channelStore = channelstore.NewStore(a.channelRepo, a.Config.Router.DefaultTimeout, a.Logger)
	if err := a.channelStore.Load(ctx); err != nil {
		initCtx := logging.WithServiceName(ctx, serviceName)
		a.Logger.WarnwCtx(initCtx, "Failed to load initial channels", "error", err)
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	client, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = client
	if client != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		a.mongoDB = client.Database(dbName)
	}
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggerMiddleware(a.Logger))
	engine.Use(middleware.RecoveryMiddleware(a.Logger))
	if a.Config.Tracing.Enabled {
		engine.Use(tracing.GinMiddleware(serviceName))
	}

	healthRegistry := health.NewCheckerRegistry()
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))

	engine.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	adminGroup := engine.Group("/")
	if a.Config.Management.RateLimit.Enabled {
		rlConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Management.RateLimit.RPS,
			Burst:           a.Config.Management.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Management.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Management.RateLimit.MaxAge) * time.Second,
		}
		if rlConfig.CleanupInterval <= 0 || rlConfig.MaxAge <= 0 {
			rlConfig = ratelimit.DefaultConfig()
		}
		adminGroup.Use(ratelimit.RateLimitMiddleware(rlConfig))
	}

	versioningRepo := management.NewVersioningRepository(a.mongoDB)
	configEvents := management.NewConfigEventProducer(a.Producer, a.Config.Broker.Kafka.ConfigUpdateTopic)
	mgmtService := management.NewService(a.channelRepo,
		management.WithVersioning(versioningRepo),
		management.WithConfigEvents(configEvents),
	)
	mgmtHandler := management.NewHandler(mgmtService, a.Logger)
	mgmtHandler.RegisterRoutes(adminGroup)

	dispatchEngine, err := a.buildDispatchEngine()
	if err != nil {
		return err
	}
	shim := router.NewOuterShim(dispatchEngine)
	engine.NoRoute(router.NewGinHandler(shim, a.channelStore.Match, a.Logger))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      engine,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}

	return nil
}

func (a *App) buildDispatchEngine() (*router.DispatchEngine, error) {
	keystore := router.NewFileKeystore(
		a.Config.Router.Keystore.KeyFile,
		a.Config.Router.Keystore.CertFile,
		a.Config.Router.Keystore.CAFiles,
	)

	brokers := a.Config.Router.KafkaBrokers
	if len(brokers) == 0 {
		brokers = a.Config.Broker.Kafka.Brokers
	}
	producerPool := router.NewKafkaProducerPool(brokers)

	httpTransport := router.NewHTTPTransportAdapter(a.Logger, a.Config.Router.DefaultTimeout)
	busTransport := router.NewBusTransportAdapter(producerPool, brokers)
	responseAdapter := router.NewResponseAdapter(a.Logger)

	persistence := router.NewMongoPersistence(a.mongoDB)
	events := router.NewMongoEvents(a.mongoDB)

	return router.NewDispatchEngine(httpTransport, busTransport, responseAdapter, keystore, persistence, events, a.Logger), nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	configConsumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
	if err != nil {
		configCtx := logging.WithServiceName(ctx, serviceName)
		a.Logger.WarnwCtx(configCtx, "Failed to create config event consumer, event-driven reload disabled", "error", err)
	} else {
		configConsumer.SetServiceName(serviceName)
		defer configConsumer.Close()
		configHandler := config_handler.NewHandler(
			models.EventTypeChannelUpdated,
			models.ServiceTypeRouter,
			a.channelStore,
			a.Logger,
		)

		g.Go(func() error {
			configCtx := logging.WithServiceName(gCtx, serviceName)
			a.Logger.InfowCtx(configCtx, "Starting config update event consumer",
				"topic", a.Config.Broker.Kafka.ConfigUpdateTopic,
			)
			return configConsumer.Consume(gCtx, a.Config.Broker.Kafka.ConfigUpdateTopic, configHandler.HandleConfigUpdateEvent)
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down router service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
