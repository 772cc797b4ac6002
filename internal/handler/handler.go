// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/penshort/shortkv/internal/handler/dto"
)

// Version is reported by the info endpoint.
const Version = "1.0.0"

// Handler serves the routes that need no dependencies.
type Handler struct {
	name string
}

// New creates a new Handler instance.
func New(name string) *Handler {
	if name == "" {
		name = "shortkv"
	}
	return &Handler{name: name}
}

// Info describes the API.
// GET /
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.InfoResponse{
		Name:    h.name,
		Version: Version,
		Endpoints: map[string]string{
			"POST /":            "shorten a URL",
			"POST /api":         "shorten a URL",
			"GET /{code}":       "redirect to the original URL",
			"HEAD /{code}":      "check a code without counting a click",
			"GET /stats/{code}": "click statistics for a code",
			"GET /healthz":      "liveness probe",
			"GET /readyz":       "readiness probe",
		},
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, dto.CodeNotFound, "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, dto.CodeMethodNotAllowed, "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.NewError(code, message))
}
