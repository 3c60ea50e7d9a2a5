package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"rummy-platform/backend/internal/auth"
	"rummy-platform/backend/internal/cache"
	"rummy-platform/backend/internal/db"
	"rummy-platform/backend/internal/locks"
	"rummy-platform/backend/internal/middleware"
	"rummy-platform/backend/internal/recovery"
	"rummy-platform/backend/internal/redis"
	"rummy-platform/backend/internal/server/events"
	"rummy-platform/backend/internal/server/handlers"
	"rummy-platform/backend/internal/server/history"
	"rummy-platform/backend/internal/server/publisher"
	"rummy-platform/backend/internal/server/requests"
	"rummy-platform/backend/internal/server/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rummy-engine/engine"
	rummyModels "rummy-engine/models"
)

const shutdownTimeout = 10 * time.Second

// Server holds all dependencies and configuration for the rummy platform server
type Server struct {
	config Config
	log    *zap.Logger
	db     *db.DB
	redis  *redis.Client // nil without REDIS_HOST

	// Services
	authService *auth.Service
	sessions    *engine.SessionManager
	history     *history.HistoryTracker
	statsCache  *cache.StatsCache
	lockManager *locks.LockManager
	publisher   *publisher.Publisher
	forwarder   *events.Forwarder
	hub         *websocket.Hub

	// Request guards
	rateLimiter *middleware.RateLimiter
	wsLimiter   *middleware.WebSocketLimiter
	requests    *requests.RequestTracker
}

// NewServer creates and initializes a new Server instance
func NewServer(config Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Initialize database
	database, err := db.New(config.DBConfig, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      config,
		log:         log,
		db:          database,
		authService: auth.NewService(config.JWTSecret, config.ClientSecret),
		history:     history.NewHistoryTracker(database, log),
		hub:         websocket.NewHub(log),
		rateLimiter: middleware.NewRateLimiter(config.RateLimit, log),
		wsLimiter:   middleware.NewWebSocketLimiter(log),
		requests:    requests.NewRequestTracker(5*time.Minute, log),
	}

	if config.RedisConfig.Enabled() {
		client, err := redis.New(config.RedisConfig, log)
		if err != nil {
			s.closeDB()
			return nil, err
		}
		s.redis = client
		s.statsCache = cache.NewStatsCache(client.Client, config.StatsCacheTTL, log)
		s.lockManager = locks.NewLockManager(client.Client, log)
	} else {
		log.Info("Redis not configured, running without stats cache and session locks")
	}

	// every log entry reaches the database, unlike the lossy event channel
	s.sessions = engine.NewSessionManager(log, engine.WithActionHook(func(sessionID string, entry rummyModels.LogEntry) {
		s.history.RecordLogEntry(sessionID, entry)
	}))
	s.publisher = publisher.New(s.sessions, s.lockManager, s.statsCache, config.PublishInterval, log)
	s.forwarder = events.NewForwarder(s.hub, s.statsCache, log)

	return s, nil
}

// Run recovers persisted sessions, starts the background loops and serves
// HTTP until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.recoverSessions()

	go s.forwarder.Run(ctx, s.sessions.GetEventChannel())
	go s.publisher.Start(ctx)

	// Set Gin mode based on environment
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpServer := &http.Server{
		Addr:              ":" + s.config.ServerPort,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server starting", zap.String("port", s.config.ServerPort))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close releases background workers and connections
func (s *Server) Close() {
	s.rateLimiter.Stop()
	s.wsLimiter.Stop()
	s.requests.Stop()
	if s.redis != nil {
		s.redis.Close()
	}
	s.closeDB()
}

func (s *Server) closeDB() {
	if sqlDB, err := s.db.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// recoverSessions restores active sessions from the database into the engine
func (s *Server) recoverSessions() {
	restored, err := recovery.NewSessionRecovery(s.db.DB, s.log).RecoverActiveSessions(s.sessions, s.config.RecoveryMaxIdle)
	if err != nil {
		s.log.Error("Session recovery failed", zap.Error(err))
		return
	}
	if len(restored) > 0 {
		s.log.Info("Recovered sessions", zap.Strings("session_ids", restored))
	}
}

// canWatch lets a websocket client follow only its own live sessions
func (s *Server) canWatch(clientID, sessionID string) bool {
	if _, err := s.sessions.GetSession(sessionID); err != nil {
		return false
	}
	session, err := s.history.GetSession(sessionID)
	return err == nil && session.ClientID == clientID
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	// Configure CORS
	corsConfig := cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "Origin", requests.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Cache", "Idempotent-Replay"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", s.handleHealth)
	r.GET("/ws", func(c *gin.Context) {
		websocket.HandleWebSocket(c, s.authService, s.hub, s.wsLimiter, s.canWatch, s.log)
	})

	api := r.Group("/api")

	// Public routes
	api.POST("/auth/token", s.rateLimiter.GinMiddleware(), func(c *gin.Context) {
		handlers.HandleIssueToken(c, s.authService)
	})

	// Protected routes
	authorized := api.Group("", handlers.AuthMiddleware(s.authService), s.rateLimiter.GinMiddleware())
	h := &handlers.SessionHandler{
		Sessions:  s.sessions,
		DB:        s.db,
		History:   s.history,
		Publisher: s.publisher,
		Cache:     s.statsCache,
		Locks:     s.lockManager,
		Log:       s.log,
	}
	idempotent := s.requests.Middleware(middleware.ClientIDKey)
	{
		authorized.POST("/sessions", idempotent, h.HandleCreateSession)
		authorized.GET("/sessions", h.HandleListSessions)

		owned := authorized.Group("/sessions/:id", h.RequireOwner())
		owned.DELETE("", idempotent, h.HandleDestroySession)
		owned.POST("/observe", h.HandleObserve)
		owned.POST("/evaluate", idempotent, h.HandleEvaluate)
		owned.PUT("/scores", idempotent, h.HandleUpdateScores)
		owned.POST("/reset", idempotent, h.HandleReset)
		owned.GET("/stats", h.HandleStats)
		owned.GET("/history", h.HandleHistory)
		owned.GET("/scores/history", h.HandleScoreHistory)
	}

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "sessions": len(s.sessions.ListSessions())}
	code := http.StatusOK

	if sqlDB, err := s.db.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	if s.redis != nil {
		if err := s.redis.HealthCheck(ctx); err != nil {
			status["status"] = "degraded"
			status["redis"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, status)
}

// requestLogger logs one line per request through zap
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_id", c.GetString(middleware.ClientIDKey)))
	}
}
