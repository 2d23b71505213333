// Package api assembles the HTTP server: the router, the middleware chain,
// and the project, task, and comment endpoints.
package api

import (
	"github.com/taskhive/taskhive/pkg/httputil"
)

// Page is the paginated response envelope
type Page struct {
	Content       interface{} `json:"content"`
	Page          int         `json:"page"`
	Size          int         `json:"size"`
	TotalElements int64       `json:"totalElements"`
	TotalPages    int         `json:"totalPages"`
}

// NewPage builds the envelope for one page of results
func NewPage(content interface{}, req httputil.PageRequest, total int64) Page {
	totalPages := int(total) / req.Size
	if int(total)%req.Size != 0 {
		totalPages++
	}
	return Page{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}
