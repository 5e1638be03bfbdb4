package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"courier/internal/authz"
	"courier/internal/bridge"
	"courier/internal/config"
	"courier/internal/hooks"
	"courier/internal/logger"
	"courier/internal/mqtt"
	"courier/internal/queue"
	"courier/internal/router"
	"courier/internal/rules"
	"courier/internal/tenant"
	"courier/pkg/circuitbreaker"
	"courier/pkg/health"
	"courier/pkg/metrics"
	"courier/pkg/migrations"
	"courier/pkg/retry"
)

const (
	systemPrincipal = "courier"
	shutdownTimeout = 10 * time.Second
)

type App struct {
	cfg *config.Config
	log logger.Logger

	mongoClient *mongo.Client
	redisClient *redis.Client
	broker      *mqtt.Client
	stats       *tenant.StatsRecorder
	queueClient queue.Client
	router      *router.Router
	bridge      *bridge.Bridge
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{cfg: cfg, log: log}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initMongoDB(ctx); err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	a.initRedis(ctx)

	db := a.mongoClient.Database(a.cfg.Database.MongoDB.Database)
	if err := migrations.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	var repo tenant.Repository = tenant.NewRepository(db)
	if a.redisClient != nil {
		ttl := time.Duration(a.cfg.Database.Redis.TTLSeconds) * time.Second
		repo = tenant.NewCachedRepository(repo, a.redisClient, ttl, a.log)
	}

	dir := tenant.NewDirectory(repo, a.cfg.Routing.Aliases)
	a.stats = tenant.NewStatsRecorder(repo, a.log)

	store := rules.NewStore(db)
	breaker := rules.NewBreakerReader(store,
		circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("rule-store")))

	mode, _ := authz.ParseMode(a.cfg.Routing.Mode)
	system := authz.Identity{
		Name:   systemPrincipal,
		Key:    a.cfg.Routing.SystemKey,
		Secret: a.cfg.Routing.SystemSecret,
	}
	service := authz.NewService(dir, breaker, a.stats, mode, system, a.log)

	if err := a.initBroker(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	a.queueClient = queue.NewKafkaClient(a.cfg.Queue.Kafka, a.log)

	routerOpts := []router.Option{router.WithQoS(byte(a.cfg.Broker.QoS))}
	if a.cfg.Bridge.Enabled {
		bridgeDir := tenant.NewDirectory(repo, a.cfg.Bridge.Aliases)
		a.bridge = bridge.New(a.cfg.Bridge, bridgeDir, a.broker, a.log)
		routerOpts = append(routerOpts, router.WithForwarder(a.bridge))
	}
	a.router = router.New(a.broker, dir, breaker, a.queueClient, mode, a.log, routerOpts...)

	metrics.RegisterAuthzMetrics()
	metrics.RegisterRouterMetrics()
	if a.cfg.Bridge.Enabled {
		metrics.RegisterBridgeMetrics()
	}

	a.initHTTPServer(service, router.NewSender(service, a.broker))
	return nil
}

func (a *App) initMongoDB(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(a.cfg.Database.MongoDB.URI))
	if err != nil {
		return err
	}

	// The store sits on the broker's connection-setup path; fail startup if
	// it is unreachable rather than denying every connection attempt.
	err = retry.Retry(ctx, retry.DefaultPolicy(), func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx, nil)
	})
	if err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}

	a.mongoClient = client
	return nil
}

// initRedis is best-effort; without it, scope resolution goes straight to
// the store on every decision.
func (a *App) initRedis(ctx context.Context) {
	if !a.cfg.Database.Redis.Enabled {
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.cfg.Database.Redis.Host, a.cfg.Database.Redis.Port),
		Password: a.cfg.Database.Redis.Password,
		DB:       a.cfg.Database.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.log.Warnw("Redis unreachable, resolution cache disabled", "error", err)
		rdb.Close()
		return
	}
	a.redisClient = rdb
}

func (a *App) initBroker() error {
	client, err := mqtt.Connect(mqtt.Options{
		URL:            a.cfg.Broker.URL,
		ClientID:       a.cfg.Broker.ClientID,
		Username:       a.cfg.Routing.SystemKey,
		Password:       a.cfg.Routing.SystemSecret,
		ConnectTimeout: a.cfg.Broker.ConnectTimeout,
		AutoReconnect:  true,
	}, a.log)
	if err != nil {
		return err
	}
	a.broker = client
	return nil
}

func (a *App) initHTTPServer(service *authz.Service, sender *router.Sender) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	hooks.NewHandler(service, a.log).RegisterRoutes(engine)
	hooks.NewPublishHandler(sender, a.log).RegisterRoutes(engine)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	healthRegistry.Register(health.NewBrokerChecker(a.broker))

	engine.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
}

func (a *App) Run(ctx context.Context) error {
	if err := a.router.Start(a.broker); err != nil {
		return fmt.Errorf("failed to start router subscription: %w", err)
	}

	if a.bridge != nil {
		if err := a.bridge.Enable(ctx); err != nil {
			return fmt.Errorf("failed to enable bridge: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Infow("HTTP server starting", "port", a.cfg.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Infow("Shutting down courier")

	var errs []error

	if a.bridge != nil {
		a.bridge.Disable()
	}
	if a.broker != nil {
		a.broker.Close()
	}
	if a.stats != nil {
		a.stats.Close()
	}
	if a.queueClient != nil {
		if err := a.queueClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("queue close error: %w", err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if a.mongoClient != nil {
		disconnectCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := a.mongoClient.Disconnect(disconnectCtx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errors.Join(errs...)
}
