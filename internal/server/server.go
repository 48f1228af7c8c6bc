package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/config"
	"github.com/aman-churiwal/voice-qos/internal/handler"
	"github.com/aman-churiwal/voice-qos/internal/middleware"
	"github.com/aman-churiwal/voice-qos/internal/proxy"
	"github.com/aman-churiwal/voice-qos/internal/qos"
	"github.com/aman-churiwal/voice-qos/internal/service"
	"github.com/aman-churiwal/voice-qos/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const version = "1.0.0"

// Deps are the collaborators the server routes to. Redis, Postgres, Events
// and Tokens are optional.
type Deps struct {
	Controller *qos.Controller
	Proxy      *proxy.Proxy
	Redis      *storage.RedisClient
	Postgres   *storage.Postgres
	Events     *service.EventService
	Tokens     *service.TokenService
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

type Server struct {
	router       *gin.Engine
	config       *config.Config
	deps         Deps
	qosHandler   *handler.QoSHandler
	eventHandler *handler.EventHandler
	httpServer   *http.Server
	startTime    time.Time
}

func New(cfg *config.Config, deps Deps) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:       gin.New(),
		config:       cfg,
		deps:         deps,
		qosHandler:   handler.NewQoSHandler(deps.Controller, deps.Tokens),
		eventHandler: handler.NewEventHandler(deps.Events),
		startTime:    time.Now(),
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.deps.Logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.deps.Logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	admin := s.router.Group("/admin")
	{
		admin.GET("/status", s.adminStatus)

		q := admin.Group("/qos")
		q.GET("/metrics", s.qosHandler.Metrics)
		q.GET("/stats", s.qosHandler.Stats)
		q.GET("/active", s.qosHandler.Active)
		q.GET("/degradation", s.qosHandler.Degradation)
		q.GET("/features/:name", s.qosHandler.Feature)
		q.GET("/budget/:priority", s.qosHandler.Budget)
		q.GET("/slo", s.qosHandler.SLOs)
		q.POST("/tokens", s.qosHandler.IssueToken)
		q.GET("/events", s.eventHandler.Recent)
		q.GET("/events/summary", s.eventHandler.Summary)
	}

	s.setupProxyRoutes()
}

func (s *Server) setupProxyRoutes() {
	if s.deps.Proxy == nil {
		return
	}

	prefix := s.config.Upstream.PathPrefix
	turns := s.router.Group(prefix,
		middleware.Identity(s.deps.Tokens),
		middleware.Admission(s.deps.Controller, s.deps.Logger),
	)
	turns.Any("/*proxyPath", s.deps.Proxy.Handle)

	s.deps.Logger.Info("Registered proxy route",
		zap.String("prefix", prefix),
		zap.String("target", s.deps.Proxy.Target()),
	)
}

func (s *Server) healthCheck(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if s.deps.Redis != nil {
		redisHealthy := true
		if err := s.deps.Redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			s.deps.Logger.Warn("Redis health check failed", zap.Error(err))
		}
		checks["redis"] = redisHealthy
		healthy = healthy && redisHealthy
	}

	if s.deps.Postgres != nil {
		dbHealthy := true
		if err := s.deps.Postgres.Ping(c.Request.Context()); err != nil {
			dbHealthy = false
			s.deps.Logger.Warn("Database health check failed", zap.Error(err))
		}
		checks["database"] = dbHealthy
		healthy = healthy && dbHealthy
	}

	if s.deps.Proxy != nil {
		if upstream := s.deps.Proxy.HealthStatus(); upstream != nil {
			checks["upstream"] = upstream.IsHealthy
			healthy = healthy && upstream.IsHealthy
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":      status,
		"service":     "voice-qos",
		"version":     version,
		"timestamp":   time.Now().Unix(),
		"degradation": s.deps.Controller.GetDegradationAction(),
		"checks":      checks,
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"gateway":      "running",
		"environment":  s.config.Server.Environment,
		"active":       s.deps.Controller.ActiveCount(),
		"current_load": s.deps.Controller.CurrentLoad(),
		"uptime":       time.Since(s.startTime).Seconds(),
		"timestamp":    time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.deps.Logger.Info("Starting voice QoS gateway",
		zap.String("addr", addr),
		zap.String("environment", s.config.Server.Environment),
	)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Logger.Info("Shutting down server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
