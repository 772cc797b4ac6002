// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidJSON         = "INVALID_JSON"
	CodeMissingURL          = "MISSING_URL"
	CodeInvalidURL          = "INVALID_URL"
	CodeLinkNotFound        = "LINK_NOT_FOUND"
	CodeGenerationExhausted = "GENERATION_EXHAUSTED"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeRateLimited         = "RATE_LIMITED"
)

// ShortenRequest represents the request body for creating a link.
type ShortenRequest struct {
	URL string `json:"url" validate:"required"`
}

// ShortenResponse is returned after a link is created.
type ShortenResponse struct {
	Success     bool   `json:"success"`
	ShortURL    string `json:"shortUrl"`
	OriginalURL string `json:"originalUrl"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// NewError builds a failed ErrorResponse.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message, Code: code}
}

// InfoResponse is served at the API root.
type InfoResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}
