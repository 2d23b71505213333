package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/observability"
)

// ErrTaskNotFound is returned when a task ID does not resolve
var ErrTaskNotFound = errors.New("task not found")

// TaskStatus is the workflow state of a task
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

// Valid reports whether the status is a known value
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task belongs to exactly one project, optionally assigned to a user
type Task struct {
	ID         int64      `json:"id"`
	ProjectID  int64      `json:"projectId"`
	Title      string     `json:"title"`
	Details    string     `json:"details,omitempty"`
	Status     TaskStatus `json:"status"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
	AssigneeID *int64     `json:"-"`
	Assignee   string     `json:"assignee,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// TaskPatch carries a partial update; nil fields are left unchanged
type TaskPatch struct {
	Title   *string
	Details *string
	Status  *TaskStatus
	DueAt   *time.Time
}

// TaskStore persists tasks in PostgreSQL
type TaskStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewTaskStore creates a PostgreSQL-backed task store
func NewTaskStore(db *sql.DB, logger *observability.Logger) *TaskStore {
	return &TaskStore{db: db, logger: logger}
}

var taskSortColumns = map[string]string{
	"title":     "t.title",
	"status":    "t.status",
	"dueAt":     "t.due_at",
	"createdAt": "t.created_at",
}

const taskColumns = `t.id, t.project_id, t.title, t.details, t.status, t.due_at, t.assignee_id, u.username, t.created_at`

func scanTask(scanner interface {
	Scan(dest ...interface{}) error
}) (*Task, error) {
	var t Task
	var details sql.NullString
	var dueAt sql.NullTime
	var assigneeID sql.NullInt64
	var assignee sql.NullString

	err := scanner.Scan(&t.ID, &t.ProjectID, &t.Title, &details, &t.Status, &dueAt, &assigneeID, &assignee, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Details = details.String
	if dueAt.Valid {
		t.DueAt = &dueAt.Time
	}
	if assigneeID.Valid {
		id := assigneeID.Int64
		t.AssigneeID = &id
	}
	t.Assignee = assignee.String
	return &t, nil
}

func (s *TaskStore) Create(ctx context.Context, projectID int64, title, details string, status TaskStatus, dueAt *time.Time, assigneeID *int64) (*Task, error) {
	if status == "" {
		status = StatusTodo
	}

	query := `
		INSERT INTO tasks (project_id, title, details, status, due_at, assignee_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query, projectID, title, details, status, dueAt, assigneeID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return s.FindByID(ctx, id)
}

func (s *TaskStore) FindByID(ctx context.Context, id int64) (*Task, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tasks t
		LEFT JOIN users u ON u.id = t.assignee_id
		WHERE t.id = $1`, taskColumns)

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}

// ListByProject returns one page of the project's tasks, optionally
// filtered by status, plus the total count.
func (s *TaskStore) ListByProject(ctx context.Context, projectID int64, status *TaskStatus, page httputil.PageRequest) ([]*Task, int64, error) {
	where := "t.project_id = $1"
	args := []interface{}{projectID}
	if status != nil {
		where += " AND t.status = $2"
		args = append(args, *status)
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tasks t WHERE %s`, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	orderBy := "t.id"
	if col, ok := taskSortColumns[page.SortBy]; ok {
		orderBy = col
	}
	dir := "ASC"
	if page.SortDir == "desc" {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tasks t
		LEFT JOIN users u ON u.id = t.assignee_id
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, taskColumns, where, orderBy, dir, len(args)+1, len(args)+2)
	args = append(args, page.Size, page.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update applies a partial patch and returns the updated task
func (s *TaskStore) Update(ctx context.Context, id int64, patch TaskPatch) (*Task, error) {
	query := `
		UPDATE tasks SET
			title = COALESCE($2, title),
			details = COALESCE($3, details),
			status = COALESCE($4, status),
			due_at = COALESCE($5, due_at)
		WHERE id = $1`

	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	result, err := s.db.ExecContext(ctx, query, id, patch.Title, patch.Details, status, patch.DueAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrTaskNotFound
	}

	return s.FindByID(ctx, id)
}

func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrTaskNotFound
	}
	return nil
}
