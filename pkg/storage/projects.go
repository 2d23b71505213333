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

// ErrProjectNotFound is returned when a project ID does not resolve
var ErrProjectNotFound = errors.New("project not found")

// Project is a container for tasks, owned by a single user
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProjectStore persists projects in PostgreSQL
type ProjectStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewProjectStore creates a PostgreSQL-backed project store
func NewProjectStore(db *sql.DB, logger *observability.Logger) *ProjectStore {
	return &ProjectStore{db: db, logger: logger}
}

// projectSortColumns whitelists sortable columns
var projectSortColumns = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
}

func (s *ProjectStore) Create(ctx context.Context, name, description string, ownerID int64) (*Project, error) {
	query := `
		INSERT INTO projects (name, description, owner_id, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, name, description, owner_id, created_at`

	var p Project
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx, query, name, description, ownerID).Scan(
		&p.ID, &p.Name, &desc, &p.OwnerID, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	p.Description = desc.String
	return &p, nil
}

func (s *ProjectStore) FindByID(ctx context.Context, id int64) (*Project, error) {
	query := `
		SELECT id, name, description, owner_id, created_at
		FROM projects
		WHERE id = $1`

	var p Project
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &desc, &p.OwnerID, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	p.Description = desc.String
	return &p, nil
}

// ListByOwner returns the owner's projects for one page plus the total
// count across all pages.
func (s *ProjectStore) ListByOwner(ctx context.Context, ownerID int64, page httputil.PageRequest) ([]*Project, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	orderBy := "id"
	if col, ok := projectSortColumns[page.SortBy]; ok {
		orderBy = col
	}
	dir := "ASC"
	if page.SortDir == "desc" {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, owner_id, created_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY %s %s
		LIMIT $2 OFFSET $3`, orderBy, dir)

	rows, err := s.db.QueryContext(ctx, query, ownerID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*Project, 0)
	for rows.Next() {
		var p Project
		var desc sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.OwnerID, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		p.Description = desc.String
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

// Delete removes a project; cascades take its tasks and their comments
func (s *ProjectStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrProjectNotFound
	}
	return nil
}
