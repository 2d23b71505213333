package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/storage"
)

// ProjectHandler serves /api/projects
type ProjectHandler struct {
	projects *storage.ProjectStore
	logger   *observability.Logger
}

// NewProjectHandler creates the project HTTP handler
func NewProjectHandler(projects *storage.ProjectStore, logger *observability.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// RegisterRoutes registers project routes on the router
func (h *ProjectHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/projects", h.List).Methods("GET")
	router.HandleFunc("/api/projects", h.Create).Methods("POST")
	router.HandleFunc("/api/projects/{id:[0-9]+}", h.Get).Methods("GET")
	router.HandleFunc("/api/projects/{id:[0-9]+}", h.Delete).Methods("DELETE")
}

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List handles GET /api/projects. Listing is scoped to the caller's own
// projects; an anonymous caller gets an empty page rather than an error.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePageRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		httputil.WriteSuccess(w, NewPage([]*storage.Project{}, page, 0))
		return
	}

	projects, total, err := h.projects.ListByOwner(r.Context(), authCtx.UserID, page)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list projects")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, NewPage(projects, page, total))
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	project, err := h.projects.Create(r.Context(), req.Name, req.Description, authCtx.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create project")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, project)
}

// Get handles GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	project, err := h.projects.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			httputil.WriteNotFoundError(w, "Project not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, project)
}

// Delete handles DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			httputil.WriteNotFoundError(w, "Project not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
