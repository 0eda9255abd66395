package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/nutrisnap/nutrisnap/internal/api/middleware"
	"github.com/nutrisnap/nutrisnap/internal/classifier"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/logger"
	"github.com/nutrisnap/nutrisnap/internal/nutrition"
	"github.com/nutrisnap/nutrisnap/internal/observability"
	"github.com/nutrisnap/nutrisnap/internal/pipeline"
)

// Analyzer is the pipeline surface served over HTTP
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*pipeline.AnalysisResult, error)
	History(ctx context.Context, q pipeline.HistoryQuery) ([]pipeline.HistoryItem, error)
	Nutrition(ctx context.Context, food string) (nutrition.Profile, error)
	Ping(ctx context.Context) error
}

// ModelStatus reports the classifier state for /health
type ModelStatus interface {
	State() classifier.State
}

// Server is the HTTP server of NutriSnap
type Server struct {
	echo     *echo.Echo
	config   *Config
	analyzer Analyzer
	model    ModelStatus
	metrics  *observability.Metrics
	log      logger.Logger

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithModelStatus sets the classifier whose state /health reports.
func WithModelStatus(m ModelStatus) ServerOption {
	return func(s *Server) {
		s.model = m
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates the server and registers middleware and routes
func New(settings *conf.Settings, analyzer Analyzer, opts ...ServerOption) (*Server, error) {
	return NewWithConfig(ConfigFromSettings(settings), analyzer, opts...)
}

// NewWithConfig creates the server from an explicit Config
func NewWithConfig(config *Config, analyzer Analyzer, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}

	s := &Server{
		config:    config,
		analyzer:  analyzer,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.log.Module("echo"), logger.EchoLevel(string(config.LogLevel)))
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Float64("rate_limit", config.RateLimit))
	return s, nil
}

// setupMiddleware configures the echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewCorrelationID())

	var requestMetrics mw.RequestMetrics
	if s.metrics != nil {
		requestMetrics = s.metrics.HTTP
	}
	s.echo.Use(mw.NewRequestLogger(s.log.Module("http"), requestMetrics))
	s.echo.Use(mw.NewCORS(s.config.AllowedOrigins))
	s.echo.Use(mw.NewSecureHeaders())
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))

	if s.config.RateLimit > 0 {
		s.echo.Use(mw.NewRateLimiter(s.config.RateLimit, s.config.RateBurst, func(c echo.Context) bool {
			p := c.Path()
			return strings.HasSuffix(p, "/health") || p == "/metrics"
		}))
	}
}

// routes is implemented by both *echo.Echo and *echo.Group
type routes interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// setupRoutes mounts the API at the root and under /api/v1
func (s *Server) setupRoutes() {
	s.registerAPI(s.echo)
	s.registerAPI(s.echo.Group("/api/v1"))

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) registerAPI(r routes) {
	r.GET("/health", s.Health)
	r.POST("/analyze", s.Analyze)
	r.GET("/history", s.History)
	r.GET("/nutrition", s.Nutrition)
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.log.Info("starting HTTP server", logger.String("address", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be used directly with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// closeQuietly closes c, logging failures at debug level
func (s *Server) closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		s.log.Debug("close failed", logger.Error(err))
	}
}
