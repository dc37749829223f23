package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/accounts"
	"github.com/hongminglow/portal-be/internal/auth"
	"github.com/hongminglow/portal-be/internal/config"
	"github.com/hongminglow/portal-be/internal/http/handlers"
	"github.com/hongminglow/portal-be/internal/middleware"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Service  *accounts.Service
	Gate     *accounts.Gate
	Sessions *auth.CookieStore
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) (*Server, error) {
	handler, err := NewHandler(cfg, deps)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}, nil
}

// NewHandler builds the routed, instrumented handler tree.
func NewHandler(cfg config.Config, deps Deps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(deps.Service, deps.Gate, deps.Sessions, logger).Register(mux)
	handlers.NewAdminHandler(deps.Service, deps.Gate, logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	var handler http.Handler = metrics.Handler(mux)
	handler = middleware.Sessions(deps.Sessions, handler)
	handler = middleware.CORS(cfg.CORSOrigins, handler)
	handler = middleware.Logging(logger, handler)
	handler = middleware.RequestID(handler)
	return handler, nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
