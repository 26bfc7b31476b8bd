// Package httpapi provides the HTTP API for wardend.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/wardend/internal/store"
	"github.com/fyrsmithlabs/wardend/internal/views"
)

// Version is stamped at build time.
var Version = "dev"

// Submitter runs the submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, text string) (*store.Item, error)
}

// ViewProvider serves the read side.
type ViewProvider interface {
	Dashboard(ctx context.Context, category string) (*views.DashboardView, error)
	Trending(ctx context.Context, period, sortBy string, limit int) (*views.TrendingView, error)
	Export(ctx context.Context) (string, []byte, error)
	Upvote(ctx context.Context, id string) (int64, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host          string
	Port          int
	CORSOrigin    string
	RatePerMinute int
}

// Server provides the wardend HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	submitter Submitter
	views     ViewProvider
	logger    *zap.Logger
	config    *Config
}

// NewServer creates a new HTTP server.
func NewServer(submitter Submitter, viewProvider ViewProvider, logger *zap.Logger, cfg *Config) (*Server, error) {
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if viewProvider == nil {
		return nil, fmt.Errorf("view provider is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8090,
		}
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 100
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.CORSOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.BodyLimit("10M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(float64(cfg.RatePerMinute) / 60.0),
			Burst: cfg.RatePerMinute,
		},
	)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	metrics := NewHTTPMetrics(logger)
	e.Use(metrics.MetricsMiddleware())

	s := &Server{
		echo:      e,
		submitter: submitter,
		views:     viewProvider,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.POST("/verify", s.handleVerify)
	api.GET("/dashboard", s.handleDashboard)
	api.GET("/trending", s.handleTrending)
	api.GET("/export", s.handleExport)
	api.POST("/upvote", s.handleUpvote)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
