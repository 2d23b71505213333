package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusConflict, "Username taken")

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var apiErr APIError
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if apiErr.Status != 409 {
		t.Errorf("expected status field 409, got %d", apiErr.Status)
	}
	if apiErr.Error != "Conflict" {
		t.Errorf("expected error Conflict, got %q", apiErr.Error)
	}
	if apiErr.Message != "Username taken" {
		t.Errorf("expected message preserved, got %q", apiErr.Message)
	}
	if apiErr.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}
}

func TestWriteInternalErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalError(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	body := w.Body.String()
	if body == "" {
		t.Fatal("expected a body")
	}
	if strings.Contains(body, "pq:") || strings.Contains(body, "connection refused") {
		t.Errorf("internal error details leaked to client: %s", body)
	}
}

func TestWriteSuccessAndCreated(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteSuccess(w, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("WriteSuccess: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	if err := WriteCreated(w, map[string]string{"id": "1"}); err != nil {
		t.Fatalf("WriteCreated: %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}
