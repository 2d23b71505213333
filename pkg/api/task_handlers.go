package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/storage"
	"github.com/taskhive/taskhive/pkg/users"
)

// TaskHandler serves /api/projects/{projectId}/tasks
type TaskHandler struct {
	tasks    *storage.TaskStore
	projects *storage.ProjectStore
	users    users.Store
	logger   *observability.Logger
}

// NewTaskHandler creates the task HTTP handler
func NewTaskHandler(tasks *storage.TaskStore, projects *storage.ProjectStore, userStore users.Store, logger *observability.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, projects: projects, users: userStore, logger: logger}
}

// RegisterRoutes registers task routes on the router
func (h *TaskHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/projects/{projectId:[0-9]+}/tasks", h.List).Methods("GET")
	router.HandleFunc("/api/projects/{projectId:[0-9]+}/tasks", h.Create).Methods("POST")
	router.HandleFunc("/api/projects/{projectId:[0-9]+}/tasks/{taskId:[0-9]+}", h.Update).Methods("PATCH")
	router.HandleFunc("/api/projects/{projectId:[0-9]+}/tasks/{taskId:[0-9]+}", h.Delete).Methods("DELETE")
}

type taskRequest struct {
	Title            string              `json:"title"`
	Details          string              `json:"details"`
	Status           *storage.TaskStatus `json:"status"`
	DueAt            *time.Time          `json:"dueAt"`
	AssigneeUsername string              `json:"assigneeUsername"`
}

type taskPatchRequest struct {
	Title   *string             `json:"title"`
	Details *string             `json:"details"`
	Status  *storage.TaskStatus `json:"status"`
	DueAt   *time.Time          `json:"dueAt"`
}

// List handles GET /api/projects/{projectId}/tasks with optional status
// filter and sorting.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectId")
	if !ok {
		return
	}

	page, err := httputil.ParsePageRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var status *storage.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := storage.TaskStatus(raw)
		if !s.Valid() {
			httputil.WriteBadRequest(w, "Unknown status: "+raw)
			return
		}
		status = &s
	}

	tasks, total, err := h.tasks.ListByProject(r.Context(), projectID, status, page)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list tasks")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, NewPage(tasks, page, total))
}

// Create handles POST /api/projects/{projectId}/tasks. Status defaults to
// TODO; an unknown assignee username is silently ignored.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectId")
	if !ok {
		return
	}

	var req taskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	status := storage.StatusTodo
	if req.Status != nil {
		if !req.Status.Valid() {
			httputil.WriteBadRequest(w, "Unknown status: "+string(*req.Status))
			return
		}
		status = *req.Status
	}

	if _, err := h.projects.FindByID(r.Context(), projectID); err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			httputil.WriteNotFoundError(w, "Project not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	assigneeID := h.resolveAssignee(r.Context(), req.AssigneeUsername)

	task, err := h.tasks.Create(r.Context(), projectID, req.Title, req.Details, status, req.DueAt, assigneeID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create task")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, task)
}

// Update handles PATCH /api/projects/{projectId}/tasks/{taskId} with a
// partial update: only fields present in the body change.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "projectId")
	if !ok {
		return
	}
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskId")
	if !ok {
		return
	}

	var req taskPatchRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		httputil.WriteBadRequest(w, "Unknown status: "+string(*req.Status))
		return
	}

	task, err := h.tasks.FindByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			httputil.WriteNotFoundError(w, "Task not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	if task.ProjectID != projectID {
		httputil.WriteBadRequest(w, "Task does not belong to this project")
		return
	}

	updated, err := h.tasks.Update(r.Context(), taskID, storage.TaskPatch{
		Title:   req.Title,
		Details: req.Details,
		Status:  req.Status,
		DueAt:   req.DueAt,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to update task")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, updated)
}

// Delete handles DELETE /api/projects/{projectId}/tasks/{taskId}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskId")
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), taskID); err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			httputil.WriteNotFoundError(w, "Task not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TaskHandler) resolveAssignee(ctx context.Context, username string) *int64 {
	if username == "" {
		return nil
	}
	u, err := h.users.FindByUsername(ctx, username)
	if err != nil {
		return nil
	}
	return &u.ID
}
