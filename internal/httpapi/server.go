// Package httpapi exposes the digest pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"NewsDigest/internal/config"
	"NewsDigest/internal/infrastructure/session"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
)

// Deps groups what the HTTP layer talks to.
type Deps struct {
	Sessions session.Store
	Runner   DigestRunner
	Gate     FreshnessGate
	History  ports.RunRecorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Server owns the echo instance and its lifecycle.
type Server struct {
	echo   *echo.Echo
	cfg    config.ServerConfig
	logger *slog.Logger
}

// NewServer registers every route.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/healthz" || path == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.Info("request completed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds())
				return nil
			}
			logger.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds(), "error", v.Error.Error())
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h := &handlers{
		sessions:   deps.Sessions,
		runner:     deps.Runner,
		gate:       deps.Gate,
		history:    deps.History,
		runTimeout: cfg.RunTimeout,
		logger:     logger,
	}
	auth := requireSession(deps.Sessions, logger)
	limiter := newSubmitLimiter(rate.Limit(cfg.SubmitRate), cfg.SubmitBurst, 0)

	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))

	api := e.Group("/api")
	api.POST("/sessions", h.createSession)
	api.DELETE("/sessions", h.deleteSession, auth)
	api.POST("/digests", h.submitDigest, auth, limiter.Middleware())
	api.GET("/runs", h.listRuns, auth)

	return &Server{echo: e, cfg: cfg, logger: logger}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
