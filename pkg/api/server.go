package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfabric/options-engine/pkg/metrics"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    int
	RateBurst    int
	Environment  string
}

// Server represents the API server
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	recorder   *metrics.Recorder
	log        *logger.Logger
}

// NewServer creates a new API server
func NewServer(config Config, handlers *Handlers, recorder *metrics.Recorder) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   config,
		engine:   gin.New(),
		handlers: handlers,
		recorder: recorder,
		log:      logger.GetLogger("api.server"),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.engine.Use(LoggingMiddleware())
	s.engine.Use(MetricsMiddleware(s.recorder))
	s.engine.Use(RecoveryMiddleware())
	s.engine.Use(CORSMiddleware())
	if s.config.RateLimit > 0 {
		s.engine.Use(RateLimitMiddleware(float64(s.config.RateLimit), s.config.RateBurst))
	}

	// Metrics endpoint for Prometheus
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/v1")
	api.GET("/health", s.handlers.HealthCheckHandler)

	pricingGroup := api.Group("/pricing")
	pricingGroup.POST("/price", s.handlers.PriceHandler)
	pricingGroup.POST("/greeks", s.handlers.GreeksHandler)
	pricingGroup.POST("/implied-vol", s.handlers.ImpliedVolHandler)
	pricingGroup.POST("/implied-vol/robust", s.handlers.RobustImpliedVolHandler)
	pricingGroup.POST("/parity", s.handlers.ParityHandler)
	pricingGroup.POST("/surface", s.handlers.SurfaceHandler)
	pricingGroup.POST("/batch", s.handlers.BatchHandler)

	chainGroup := api.Group("/chain")
	chainGroup.POST("/atm-iv", s.handlers.ATMIVHandler)

	api.GET("/stream", s.handlers.StreamHandler)
}

// Start starts the API server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
