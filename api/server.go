package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/predictops/autoscaler/api/handlers"
	"github.com/predictops/autoscaler/api/middleware"
	"github.com/predictops/autoscaler/api/websocket"
	"github.com/predictops/autoscaler/internal/auth"
	"github.com/predictops/autoscaler/pkg/config"
	"github.com/predictops/autoscaler/pkg/database"
	"github.com/predictops/autoscaler/pkg/database/queries"
)

type Server struct {
	router        *gin.Engine
	httpServer    *http.Server
	config        config.Config
	db            *database.DB
	authService   *auth.Service
	wsHub         *websocket.Hub
	wsBridge      *websocket.EventBridge
	targetManager handlers.TargetManager
	metricsSource handlers.BackendChecker
}

func NewServer(cfg config.Config, db *database.DB, targetManager handlers.TargetManager, metricsSource handlers.BackendChecker) *Server {
	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	authService := auth.NewService(cfg.API.JWTSecret, cfg.API.JWTDuration)
	wsHub := websocket.NewHub(&cfg.WebSocket)

	s := &Server{
		router:        router,
		config:        cfg,
		db:            db,
		authService:   authService,
		wsHub:         wsHub,
		targetManager: targetManager,
		metricsSource: metricsSource,
	}

	s.setupMiddleware()
	s.setupRoutes()

	// Start WebSocket hub
	go wsHub.Run()

	// Forward control loop events to WebSocket clients
	if targetManager != nil {
		eventsChan := targetManager.SubscribeAllEvents()
		s.wsBridge = websocket.NewEventBridge(wsHub, eventsChan)
		s.wsBridge.Start()
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestSizeLimit(1 << 20))

	rateLimiter := middleware.NewRateLimiter(s.config.API.RateLimit, time.Minute)
	s.router.Use(middleware.RateLimit(rateLimiter))

	// Query endpoints hit postgres, keep them on a tighter budget
	endpointLimiter := middleware.NewEndpointRateLimiter()
	endpointLimiter.AddEndpoint("/targets/:id/events", 30, time.Minute)
	endpointLimiter.AddEndpoint("/targets/:id/events/stats", 30, time.Minute)
	endpointLimiter.AddEndpoint("/events/recent", 30, time.Minute)
	s.router.Use(endpointLimiter.Middleware())
}

func (s *Server) setupRoutes() {
	// Repositories
	var userRepo *queries.UserRepository
	var eventsRepo *queries.ScalingEventRepository
	if s.db != nil {
		userRepo = queries.NewUserRepository(s.db.DB)
		eventsRepo = queries.NewScalingEventRepository(s.db.DB)
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler(s.db, s.metricsSource)
	authHandler := handlers.NewAuthHandler(userRepo, s.authService)
	targetHandler := handlers.NewTargetHandler(s.targetManager)
	eventsHandler := handlers.NewEventsHandler(eventsRepo, &s.config.API)

	// Public routes
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)

	// Auth routes
	authLimiter := middleware.AuthRateLimiter()
	s.router.POST("/auth/login", authLimiter, authHandler.Login)
	s.router.POST("/auth/register", authLimiter, authHandler.Register)

	// WebSocket route
	s.router.GET("/ws", websocket.ServeWebSocket(s.wsHub))

	// Protected routes
	protected := s.router.Group("/")
	protected.Use(middleware.JWTAuth(s.authService))
	{
		// Authenticated user
		protected.GET("/auth/me", authHandler.Me)

		// Targets
		protected.GET("/targets", targetHandler.List)
		protected.GET("/targets/:id", targetHandler.Get)

		// Scaling events
		protected.GET("/targets/:id/events", eventsHandler.GetScalingEvents)
		protected.GET("/targets/:id/events/stats", eventsHandler.GetScalingStats)
		protected.GET("/events/recent", eventsHandler.GetRecentEvents)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.API.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.API.ReadTimeout,
		WriteTimeout: s.config.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop the event bridge first
	if s.wsBridge != nil {
		s.wsBridge.Stop()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
