package httputil

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		Username string `json:"username"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"alice"}`))
	if err := ParseJSON(req, &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.Username != "alice" {
		t.Errorf("expected alice, got %q", dest.Username)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{not json`))
	if err := ParseJSON(req, &dest); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestParsePageRequestDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/projects", nil)

	p, err := ParsePageRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Page != 0 || p.Size != 10 {
		t.Errorf("expected defaults page=0 size=10, got page=%d size=%d", p.Page, p.Size)
	}
	if p.SortDir != "asc" {
		t.Errorf("expected default sort dir asc, got %q", p.SortDir)
	}
}

func TestParsePageRequestClamping(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		expectedPage int
		expectedSize int
	}{
		{"negative page", "page=-5&size=10", 0, 10},
		{"zero size", "page=0&size=0", 0, 1},
		{"oversized", "page=2&size=5000", 2, 100},
		{"in range", "page=3&size=25", 3, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/projects?"+tt.query, nil)
			p, err := ParsePageRequest(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Page != tt.expectedPage {
				t.Errorf("expected page %d, got %d", tt.expectedPage, p.Page)
			}
			if p.Size != tt.expectedSize {
				t.Errorf("expected size %d, got %d", tt.expectedSize, p.Size)
			}
		})
	}
}

func TestParsePageRequestRejectsGarbage(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/projects?page=abc", nil)
	if _, err := ParsePageRequest(req); err == nil {
		t.Error("expected error for non-numeric page")
	}
}

func TestPageRequestOffset(t *testing.T) {
	p := PageRequest{Page: 3, Size: 20}
	if p.Offset() != 60 {
		t.Errorf("expected offset 60, got %d", p.Offset())
	}
}
