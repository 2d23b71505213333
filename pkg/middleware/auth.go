// Package middleware provides the request gate, rate limiting, and request
// ID propagation for the HTTP server.
package middleware

import (
	"net/http"
	"strings"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/contextkeys"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/users"
)

// AuthGate resolves the caller identity from a Bearer token. It never
// rejects a request on its own: a missing, malformed, expired, or otherwise
// invalid token leaves the request anonymous, and per-route guards decide
// whether anonymous is acceptable.
type AuthGate struct {
	issuer  *auth.TokenIssuer
	store   users.Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthGate creates the authentication gate middleware
func NewAuthGate(issuer *auth.TokenIssuer, store users.Store, logger *observability.Logger, metrics *observability.Metrics) *AuthGate {
	return &AuthGate{
		issuer:  issuer,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Handler wraps an HTTP handler with identity resolution
func (g *AuthGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := g.issuer.Verify(token)
		if err != nil {
			// invalid or expired token: continue anonymously
			g.observe("rejected")
			g.logger.WithError(err).Debug("Bearer token rejected")
			next.ServeHTTP(w, r)
			return
		}

		u, err := g.store.FindByUsername(r.Context(), claims.Username)
		if err != nil {
			g.observe("unknown_user")
			g.logger.WithField("username", claims.Username).Debug("Token subject no longer exists")
			next.ServeHTTP(w, r)
			return
		}

		g.observe("accepted")
		ctx := contextkeys.WithAuth(r.Context(), auth.NewAuthContext(u))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *AuthGate) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.TokenChecksTotal.WithLabelValues(outcome).Inc()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme comparison is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth rejects anonymous requests with 401
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()) == nil {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role. Anonymous callers
// get 401, authenticated non-admins get 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.FromContext(r.Context())
		if authCtx == nil {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !authCtx.IsAdmin() {
			httputil.WriteForbidden(w, "Admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
