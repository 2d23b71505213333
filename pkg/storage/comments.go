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

// ErrCommentNotFound is returned when a comment ID does not resolve
var ErrCommentNotFound = errors.New("comment not found")

// Comment is attached to a task and attributed to its author
type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"taskId"`
	AuthorID  int64     `json:"-"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentStore persists comments in PostgreSQL
type CommentStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewCommentStore creates a PostgreSQL-backed comment store
func NewCommentStore(db *sql.DB, logger *observability.Logger) *CommentStore {
	return &CommentStore{db: db, logger: logger}
}

const commentColumns = `c.id, c.task_id, c.author_id, u.username, c.body, c.created_at`

func (s *CommentStore) Create(ctx context.Context, taskID, authorID int64, body string) (*Comment, error) {
	query := `
		INSERT INTO comments (task_id, author_id, body, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id`

	var id int64
	if err := s.db.QueryRowContext(ctx, query, taskID, authorID, body).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return s.FindByID(ctx, id)
}

func (s *CommentStore) FindByID(ctx context.Context, id int64) (*Comment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1`, commentColumns)

	var c Comment
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.TaskID, &c.AuthorID, &c.Author, &c.Body, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query comment: %w", err)
	}
	return &c, nil
}

// ListByTask returns one page of the task's comments in creation order,
// plus the total count.
func (s *CommentStore) ListByTask(ctx context.Context, taskID int64, page httputil.PageRequest) ([]*Comment, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments c WHERE c.task_id = $1`, taskID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.task_id = $1
		ORDER BY c.created_at ASC
		LIMIT $2 OFFSET $3`, commentColumns)

	rows, err := s.db.QueryContext(ctx, query, taskID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

func (s *CommentStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrCommentNotFound
	}
	return nil
}
