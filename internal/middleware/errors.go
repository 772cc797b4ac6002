package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/penshort/shortkv/internal/handler/dto"
)

// writeError writes an API error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.NewError(code, message))
}
