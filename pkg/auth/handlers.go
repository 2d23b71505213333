package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/users"
)

// Handler serves the credential endpoints under /api/auth
type Handler struct {
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the auth HTTP handler
func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers auth routes on the router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/api/auth/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/api/auth/me", h.Me).Methods("GET")
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	pair, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			httputil.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		h.logger.WithError(err).Error("Login failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, pair)
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !httputil.RequireNonEmpty(w, req.Username, "username") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	pair, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			httputil.WriteConflict(w, "Username is already taken")
			return
		}
		h.logger.WithError(err).Error("Registration failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, pair)
}

// Refresh handles POST /api/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.RefreshToken, "refreshToken") {
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrBadRefreshToken) {
			httputil.WriteUnauthorized(w, "Invalid refresh token")
			return
		}
		h.logger.WithError(err).Error("Token refresh failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, pair)
}

type meResponse struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Authorities []string `json:"authorities"`
}

// Me handles GET /api/auth/me and reports the caller identity
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	authCtx := FromContext(r.Context())
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	httputil.WriteSuccess(w, meResponse{
		Username:    authCtx.Username,
		Role:        string(authCtx.Role),
		Authorities: authCtx.Authorities,
	})
}
