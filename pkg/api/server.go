package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/taskhive/taskhive/pkg/config"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/observability"
)

// RouteRegistrar is anything that can mount routes on the router
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Server is the public API server
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer assembles the router and middleware chain. The rate limiter is
// optional; without Redis the credential endpoints are simply unthrottled.
// The order matters: identity is resolved after logging and recovery so
// panics and request logs always happen, and before any handler runs.
func NewServer(
	cfg *config.Config,
	logger *observability.Logger,
	metrics *observability.Metrics,
	gate *middleware.AuthGate,
	limiter *middleware.RateLimiter,
	tracingEnabled bool,
	registrars ...RouteRegistrar,
) *Server {
	router := mux.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(httputil.LoggingMiddleware(logger))
	router.Use(httputil.RecoveryMiddleware(logger))
	router.Use(httputil.CORSMiddleware(cfg.Server.AllowedOrigins))
	if metrics != nil {
		router.Use(metrics.Middleware)
	}
	if tracingEnabled {
		router.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "taskhive.api")
		})
	}
	if limiter != nil {
		router.Use(limitCredentialRoutes(limiter))
	}
	router.Use(gate.Handler)
	router.Use(requireAuthOutsideAuthRoutes())

	for _, r := range registrars {
		r.RegisterRoutes(router)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "Resource not found")
	})

	return &Server{router: router, logger: logger, metrics: metrics}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// limitCredentialRoutes throttles only the credential endpoints, where
// brute forcing is the concern. The rest of the API is left alone.
func limitCredentialRoutes(limiter *middleware.RateLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		limited := limiter.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/auth/") {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuthOutsideAuthRoutes rejects anonymous requests to everything
// under /api except the credential and federated login endpoints, which
// must be reachable to log in at all.
func requireAuthOutsideAuthRoutes() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		protected := middleware.RequireAuth(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			open := strings.HasPrefix(path, "/api/auth/") ||
				strings.HasPrefix(path, "/api/sso/") ||
				r.Method == http.MethodOptions
			if open || !strings.HasPrefix(path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}
