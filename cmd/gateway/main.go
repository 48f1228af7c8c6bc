package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/config"
	"github.com/aman-churiwal/voice-qos/internal/healthcheck"
	"github.com/aman-churiwal/voice-qos/internal/logging"
	"github.com/aman-churiwal/voice-qos/internal/metrics"
	"github.com/aman-churiwal/voice-qos/internal/proxy"
	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/aman-churiwal/voice-qos/internal/ratelimit"
	"github.com/aman-churiwal/voice-qos/internal/repository"
	"github.com/aman-churiwal/voice-qos/internal/server"
	"github.com/aman-churiwal/voice-qos/internal/service"
	"github.com/aman-churiwal/voice-qos/internal/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load env if it exists
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Global().Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		logging.Global().Fatal("Failed to build logger", zap.Error(err))
	}
	logging.SetGlobal(logger)
	defer logger.Sync()

	var redis *storage.RedisClient
	if cfg.Redis.Enabled || cfg.QoS.RateLimitBackend == config.RateLimitBackendRedis {
		redis, err = storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.GetRedisAddr()), zap.Error(err))
		}
		defer redis.Close()
		logger.Info("Connected to redis successfully")
	}

	limiter, err := ratelimit.NewLimiter(cfg.QoS.RateLimitBackend, redis, cfg.QoS.MaxRequestsPerMinute, time.Minute)
	if err != nil {
		logger.Fatal("Failed to create rate limiter", zap.Error(err))
	}

	eventCounter := metrics.NewEventCounter()
	opts := []qos.Option{
		qos.WithLogger(logger.Named("qos")),
		qos.WithLimiter(limiter),
		qos.WithObserver(eventCounter),
	}

	var (
		postgres *storage.Postgres
		recorder *service.EventRecorder
		events   *service.EventService
	)
	if cfg.Database.Enabled {
		postgres, err = storage.NewPostgres(cfg.Database, logger.Named("gorm"))
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer postgres.Close()

		if err := postgres.AutoMigrate(); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Connected to database successfully")

		repo := repository.NewEventRepository(postgres)
		recorder = service.NewEventRecorder(repo, logger.Named("events"), 0)
		events = service.NewEventService(repo, logger.Named("events"))
		opts = append(opts, qos.WithObserver(recorder))
	}

	ctrl, err := qos.New(cfg.QoS, opts...)
	if err != nil {
		logger.Fatal("Failed to create admission controller", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry, ctrl, eventCounter); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	upstream, err := proxy.New(cfg.Upstream.Target, logger.Named("proxy"))
	if err != nil {
		logger.Fatal("Failed to create upstream proxy", zap.Error(err))
	}

	var checker *healthcheck.Checker
	if cfg.Upstream.HealthEndpoint != "" {
		checker = healthcheck.NewChecker(healthcheck.Config{
			Target:   cfg.Upstream.Target,
			Endpoint: cfg.Upstream.HealthEndpoint,
			Interval: cfg.Upstream.HealthInterval(),
		}, logger.Named("healthcheck"))
		upstream.SetHealthChecker(checker)
	}

	var tokens *service.TokenService
	if cfg.Auth.JWTSecret != "" {
		tokens = service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry())
	}

	srv := server.New(cfg, server.Deps{
		Controller: ctrl,
		Proxy:      upstream,
		Redis:      redis,
		Postgres:   postgres,
		Events:     events,
		Tokens:     tokens,
		Gatherer:   registry,
		Logger:     logger,
	})

	// Background loops stop when ctx is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ctrl.Run(gctx) })
	if checker != nil {
		g.Go(func() error { return checker.Run(gctx) })
	}
	if recorder != nil {
		g.Go(func() error { return recorder.Run(gctx) })
		g.Go(func() error {
			return events.RunRetention(gctx, time.Hour, cfg.Database.EventRetention())
		})
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// In-flight requests have drained, flush events and stop the loops
	cancel()
	if err := g.Wait(); err != nil {
		logger.Error("Background loop failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
