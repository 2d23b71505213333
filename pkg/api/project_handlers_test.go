package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/contextkeys"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/storage"
	"github.com/taskhive/taskhive/pkg/users"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func aliceCtx() context.Context {
	u := &users.User{ID: 1, Username: "alice", Role: users.RoleUser}
	return contextkeys.WithAuth(context.Background(), auth.NewAuthContext(u))
}

func newProjectRouter(t *testing.T, db *sql.DB) *mux.Router {
	t.Helper()
	h := NewProjectHandler(storage.NewProjectStore(db, testLogger()), testLogger())
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func TestProjectListScopedToOwner(t *testing.T) {
	db, mock := newMockDB(t)
	router := newProjectRouter(t, db)

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM projects`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT id, name, description, owner_id, created_at").
		WithArgs(int64(1), 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "owner_id", "created_at"}).
			AddRow(int64(1), "Website", nil, int64(1), now))

	req := httptest.NewRequest("GET", "/api/projects", nil).WithContext(aliceCtx())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var page Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.TotalElements != 1 || page.TotalPages != 1 {
		t.Errorf("unexpected page envelope: %+v", page)
	}
}

func TestProjectListAnonymousEmptyPage(t *testing.T) {
	db, _ := newMockDB(t)
	router := newProjectRouter(t, db)

	// no identity attached; the store must not even be queried
	req := httptest.NewRequest("GET", "/api/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var page Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.TotalElements != 0 {
		t.Errorf("expected empty page, got %+v", page)
	}
}

func TestProjectCreateRequiresIdentity(t *testing.T) {
	db, _ := newMockDB(t)
	router := newProjectRouter(t, db)

	body := bytes.NewReader([]byte(`{"name":"Website"}`))
	req := httptest.NewRequest("POST", "/api/projects", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestProjectCreate(t *testing.T) {
	db, mock := newMockDB(t)
	router := newProjectRouter(t, db)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO projects").
		WithArgs("Website", "Marketing site", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "owner_id", "created_at"}).
			AddRow(int64(5), "Website", "Marketing site", int64(1), now))

	body := bytes.NewReader([]byte(`{"name":"Website","description":"Marketing site"}`))
	req := httptest.NewRequest("POST", "/api/projects", body).WithContext(aliceCtx())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var project storage.Project
	if err := json.Unmarshal(w.Body.Bytes(), &project); err != nil {
		t.Fatal(err)
	}
	if project.ID != 5 || project.Name != "Website" {
		t.Errorf("unexpected project: %+v", project)
	}
}

func TestProjectCreateValidation(t *testing.T) {
	db, _ := newMockDB(t)
	router := newProjectRouter(t, db)

	body := bytes.NewReader([]byte(`{"description":"no name"}`))
	req := httptest.NewRequest("POST", "/api/projects", body).WithContext(aliceCtx())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestProjectGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	router := newProjectRouter(t, db)

	mock.ExpectQuery("SELECT id, name, description, owner_id, created_at").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "owner_id", "created_at"}))

	req := httptest.NewRequest("GET", "/api/projects/99", nil).WithContext(aliceCtx())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
