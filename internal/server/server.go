package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Mearman/mcp-wayback-machine/internal/appid"
	"github.com/Mearman/mcp-wayback-machine/internal/core/wayback"
	apperrors "github.com/Mearman/mcp-wayback-machine/internal/errors"
	"github.com/Mearman/mcp-wayback-machine/internal/metrics"
	"github.com/Mearman/mcp-wayback-machine/internal/observability"
	"github.com/Mearman/mcp-wayback-machine/internal/server/handlers"
	servermw "github.com/Mearman/mcp-wayback-machine/internal/server/middleware"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

// Options configures the HTTP tool server.
type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RateLimitRPS bounds tool calls per client; 0 disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int

	Registry *tools.Registry
	Call     wayback.CallOptions
	Health   *handlers.HealthManager
	Logger   *logging.Logger
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	api     huma.API
	server  *http.Server
	opts    Options
	ingress *servermw.IngressLimiter
	logger  *logging.Logger
}

// New builds the router and registers every route.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if opts.Health == nil {
		opts.Health = handlers.NewHealthManager(appid.Version)
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.ServerLogger
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.AccessLog)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:  r,
		opts:    opts,
		ingress: servermw.NewIngressLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		logger:  logger,
	}

	s.registerRoutes()

	// Routes added after this point share the ingress limiter.
	limited := r.With(s.ingress.Middleware(rejectOverLimit))
	s.api = humachi.New(limited, huma.DefaultConfig(appid.ServerName, appid.Version))
	registerToolRoutes(s.api, opts.Registry, opts.Call)

	return s, nil
}

func rejectOverLimit(w http.ResponseWriter, r *http.Request) {
	metrics.RecordIngressRejected(r.URL.Path)
	apperrors.RespondWithEnvelope(w, r, apperrors.NewRateLimitedError("too many requests; slow down"))
}

// Start listens until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.ingress.StartJanitor(ctx, 2*time.Minute)

	s.info("Starting HTTP server",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.String("addr", addr),
		zap.Int("tools", len(s.opts.Registry.List())))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.info("Shutting down HTTP server")
	if s.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ShutdownTimeout)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// API exposes the huma API, mainly for its OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Port returns the configured port
func (s *Server) Port() int {
	return s.opts.Port
}

func (s *Server) info(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}
