package sso

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/observability"
)

const stateCookieName = "sso_state"

// Handler serves the federated login endpoints under /api/sso
type Handler struct {
	providers   map[string]Provider
	provisioner *Provisioner
	issuer      *auth.TokenIssuer
	frontendURL string
	logger      *observability.Logger

	// secureCookies is disabled in tests that speak plain HTTP
	secureCookies bool
}

// NewHandler creates the federated login HTTP handler. frontendURL is where
// the browser lands after a successful login, with the token pair appended
// as query parameters.
func NewHandler(provisioner *Provisioner, issuer *auth.TokenIssuer, frontendURL string, logger *observability.Logger, providers ...Provider) *Handler {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Handler{
		providers:     byName,
		provisioner:   provisioner,
		issuer:        issuer,
		frontendURL:   frontendURL,
		logger:        logger,
		secureCookies: true,
	}
}

// RegisterRoutes registers federated login routes on the router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/sso/{provider}/login", h.InitiateLogin).Methods("GET")
	router.HandleFunc("/api/sso/{provider}/callback", h.Callback).Methods("GET")
}

// InitiateLogin handles GET /api/sso/{provider}/login
func (h *Handler) InitiateLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[mux.Vars(r)["provider"]]
	if !ok {
		httputil.WriteNotFoundError(w, "Unknown login provider")
		return
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/sso",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /api/sso/{provider}/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[mux.Vars(r)["provider"]]
	if !ok {
		httputil.WriteNotFoundError(w, "Unknown login provider")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		httputil.WriteBadRequest(w, "Missing login state")
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		httputil.WriteBadRequest(w, "Login state mismatch")
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/api/sso", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "Missing authorization code")
		return
	}

	identity, err := provider.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrNoExternalID) {
			httputil.WriteBadRequest(w, "Provider response missing user identifier")
			return
		}
		h.logger.WithError(err).WithField("provider", provider.Name()).Error("Federated login failed")
		httputil.WriteBadRequest(w, "Federated login failed")
		return
	}

	u, err := h.provisioner.FindOrCreate(r.Context(), identity)
	if err != nil {
		if errors.Is(err, ErrNoExternalID) {
			httputil.WriteBadRequest(w, "Provider response missing user identifier")
			return
		}
		h.logger.WithError(err).Error("Failed to provision federated user")
		httputil.WriteInternalError(w, err)
		return
	}

	access, err := h.issuer.IssueAccess(u.Username)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	refresh, err := h.issuer.IssueRefresh(u.Username)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	redirect, err := url.Parse(h.frontendURL)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	q := redirect.Query()
	q.Set("accessToken", access)
	q.Set("refreshToken", refresh)
	q.Set("username", u.Username)
	redirect.RawQuery = q.Encode()

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}
