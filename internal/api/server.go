// Package api exposes the signal engine over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/cache"
	"trading-signal-engine/internal/database"
	"trading-signal-engine/internal/events"
	"trading-signal-engine/internal/secrets"
	"trading-signal-engine/internal/signal"
)

// SignalService is the engine surface the HTTP layer depends on.
type SignalService interface {
	GenerateSignal(ctx context.Context, ticker string, opts signal.Options) (*signal.Signal, error)
	GenerateBatchSignals(ctx context.Context, tickers []string, opts signal.Options) (*signal.BatchResult, error)
	GenerateMultiTimeframeSignal(ctx context.Context, ticker string) (*signal.MultiTimeframeResult, error)
	UpdateSignal(ctx context.Context, signalID string) (*signal.Signal, error)
	Stats() *signal.EngineStats
}

// SignalHistory serves the read-only history endpoint.
type SignalHistory interface {
	ListRecentSignals(ctx context.Context, ticker string, since time.Time, limit int) ([]*signal.Signal, error)
}

// ServerDeps carries the collaborators a Server needs. Service is required;
// everything else degrades gracefully when nil.
type ServerDeps struct {
	Service     SignalService
	History     SignalHistory
	SignalCache *cache.SignalCache
	Cache       *cache.CacheService
	DB          *database.DB
	Secrets     *secrets.Client
	Events      *events.EventBus
	Metrics     *MetricsRecorder
	Logger      zerolog.Logger
}

// Server is the HTTP front of the signal engine.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.ServerConfig

	service  SignalService
	history  SignalHistory
	sigCache *cache.SignalCache
	cacheSvc *cache.CacheService
	db       *database.DB
	secrets  *secrets.Client
	events   *events.EventBus
	wsHub    *WSHub
	metrics  *MetricsRecorder
	log      zerolog.Logger
}

// NewServer builds the router, starts the websocket hub and bridges the
// event bus into it.
func NewServer(cfg config.ServerConfig, deps ServerDeps) (*Server, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("signal service is required")
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		history:  deps.History,
		sigCache: deps.SignalCache,
		cacheSvc: deps.Cache,
		db:       deps.DB,
		secrets:  deps.Secrets,
		events:   deps.Events,
		wsHub:    NewWSHub(deps.Logger),
		metrics:  deps.Metrics,
		log:      deps.Logger.With().Str("component", "api").Logger(),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(s.corsMiddleware())

	s.router = router
	s.setupRoutes()

	go s.wsHub.Run()
	if s.events != nil {
		s.events.SubscribeAll(s.wsHub.BroadcastEvent)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	return s, nil
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	origins := strings.TrimSpace(s.cfg.AllowedOrigins)
	if origins == "" || origins == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(origins, ",")
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	return cors.New(corsCfg)
}

// requestLogger logs one line per request at debug, errors at warn.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := s.log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = s.log.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/signals", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/signals/:ticker", s.handleGenerateSignal)
		v1.POST("/signals/batch", s.handleBatchSignals)
		v1.POST("/signals/update/:id", s.handleUpdateSignal)
		v1.GET("/signals/:ticker/timeframes", s.handleTimeframes)
		v1.GET("/signals/:ticker/history", s.handleHistory)
		v1.GET("/stats", s.handleStats)
	}
}

// Start begins serving. It blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
