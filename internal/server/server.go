package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
)

type Server struct {
	Engine *gin.Engine
	Addr   string
	checks map[string]HealthChecker
}

// HealthChecker is an interface for components that can report their health status.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to HealthChecker.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Option func(*Server)

// WithHealthCheck adds a named dependency to /health.
func WithHealthCheck(name string, hc HealthChecker) Option {
	return func(s *Server) { s.checks[name] = hc }
}

// WithMetrics serves gatherer on /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// WithMiddleware installs global middleware ahead of every route registered later.
func WithMiddleware(handlers ...gin.HandlerFunc) Option {
	return func(s *Server) { s.Engine.Use(handlers...) }
}

// WithMaxBodySize rejects requests whose declared length exceeds mb megabytes.
func WithMaxBodySize(mb int) Option {
	return func(s *Server) {
		if mb <= 0 {
			return
		}
		limit := int64(mb) * 1024 * 1024
		s.Engine.Use(func(c *gin.Context) {
			if c.Request.ContentLength > limit {
				status, body := coreerrors.Envelope(&coreerrors.Error{
					Name:    coreerrors.NameBadRequest,
					Message: "Request body exceeds maximum allowed size",
					Status:  http.StatusRequestEntityTooLarge,
					Details: map[string]interface{}{"max_size_mb": mb},
				})
				c.AbortWithStatusJSON(status, body)
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
		})
	}
}

func New(addr string, mode string, opts ...Option) *Server {
	// Set Gin mode based on configuration
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   addr,
		checks: make(map[string]HealthChecker),
	}
	for _, opt := range opts {
		opt(s)
	}

	r.GET("/health", s.healthHandler)

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := gin.H{"status": "healthy"}
	code := http.StatusOK
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			slog.Error("Health check failed", "dependency", name, "error", err)
			body[name] = "unreachable"
			body["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		body[name] = "connected"
	}

	c.JSON(code, body)
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
