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

// CommentHandler serves /api/tasks/{taskId}/comments
type CommentHandler struct {
	comments *storage.CommentStore
	tasks    *storage.TaskStore
	logger   *observability.Logger
}

// NewCommentHandler creates the comment HTTP handler
func NewCommentHandler(comments *storage.CommentStore, tasks *storage.TaskStore, logger *observability.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, tasks: tasks, logger: logger}
}

// RegisterRoutes registers comment routes on the router
func (h *CommentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/tasks/{taskId:[0-9]+}/comments", h.List).Methods("GET")
	router.HandleFunc("/api/tasks/{taskId:[0-9]+}/comments", h.Create).Methods("POST")
	router.HandleFunc("/api/tasks/{taskId:[0-9]+}/comments/{commentId:[0-9]+}", h.Delete).Methods("DELETE")
}

type commentRequest struct {
	Body string `json:"body"`
}

// List handles GET /api/tasks/{taskId}/comments, oldest first
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskId")
	if !ok {
		return
	}

	page, err := httputil.ParsePageRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	comments, total, err := h.comments.ListByTask(r.Context(), taskID, page)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list comments")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, NewPage(comments, page, total))
}

// Create handles POST /api/tasks/{taskId}/comments. The author is always
// the current identity.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	taskID, ok := httputil.ParsePathInt64OrError(w, r, "taskId")
	if !ok {
		return
	}

	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Body, "body") {
		return
	}

	if _, err := h.tasks.FindByID(r.Context(), taskID); err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			httputil.WriteNotFoundError(w, "Task not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	comment, err := h.comments.Create(r.Context(), taskID, authCtx.UserID, req.Body)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create comment")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, comment)
}

// Delete handles DELETE /api/tasks/{taskId}/comments/{commentId}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	commentID, ok := httputil.ParsePathInt64OrError(w, r, "commentId")
	if !ok {
		return
	}

	if err := h.comments.Delete(r.Context(), commentID); err != nil {
		if errors.Is(err, storage.ErrCommentNotFound) {
			httputil.WriteNotFoundError(w, "Comment not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
