package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"telbill/internal/bills"
	"telbill/internal/calls"
	"telbill/internal/config"
	"telbill/internal/constants"
	"telbill/internal/logger"
	"telbill/internal/pipeline"
	"telbill/pkg/bootstrap"
	"telbill/pkg/health"
	"telbill/pkg/metrics"
	"telbill/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	mongoClient    *mongo.Client
	redis          *redis.Client
	dispatcher     *pipeline.Dispatcher
	triggers       []string
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.WorkerServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(constants.WorkerServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initDispatcher(ctx); err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, constants.WorkerServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterPipelineMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, constants.ConnectTimeout)
	defer cancel()

	db, err := a.dbConnector.InitPostgreSQL(initCtx)
	if err != nil {
		return err
	}
	a.db = db

	mongoClient, err := a.dbConnector.InitMongoDB(initCtx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	rdb, err := a.dbConnector.InitRedis(initCtx)
	if err != nil {
		return err
	}
	a.redis = rdb

	return a.dbConnector.Migrate(initCtx, a.db, a.dbConnector.MongoDatabase(a.mongoClient))
}

func (a *App) initDispatcher(ctx context.Context) error {
	callRepo := calls.NewRepository(a.db)

	registry, err := buildRegistry(a.Config, serviceDeps{
		callStore:     calls.NewCircuitBreakerRepository(callRepo, a.Config.CircuitBreaker),
		registryStore: callRepo,
		billStore:     bills.NewRepository(a.dbConnector.MongoDatabase(a.mongoClient)),
	})
	if err != nil {
		return err
	}

	triggers, err := selectTriggers(registry, a.Config.Pipeline.Triggers)
	if err != nil {
		return err
	}
	a.triggers = triggers

	a.dispatcher = pipeline.NewDispatcher(registry, pipeline.Env{
		Tasks:     a.dbConnector.TaskStore(ctx, a.redis),
		Publisher: a.Publisher(),
		Logger:    a.Logger,
	})
	a.Consumer.OnDeadLetter(a.dispatcher.Abandon)

	a.Logger.InfowCtx(ctx, "Pipeline services registered",
		"services", registry.Len(),
		"triggers", a.triggers,
	)
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))

	router.GET("/health", healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	for _, trigger := range a.triggers {
		g.Go(func() error {
			err := a.Consumer.Consume(gCtx, trigger, a.dispatcher.DispatchJob)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
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

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
