package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/penshort/shortkv/internal/handler/dto"
	"github.com/penshort/shortkv/internal/middleware"
	"github.com/penshort/shortkv/internal/service"
	"github.com/penshort/shortkv/internal/shortcode"
)

// LinkHandler handles link creation and stats lookups.
type LinkHandler struct {
	svc      *service.LinkService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc *service.LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

var errTrailingJSON = errors.New("unexpected data after JSON body")

// decodeSingleJSON decodes exactly one JSON value from the request body.
func decodeSingleJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errTrailingJSON
	}
	return nil
}

// Create handles POST / and POST /api.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ShortenRequest
	if err := decodeSingleJSON(r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, dto.CodeInvalidJSON, "Invalid JSON body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeMissingURL, "URL is required")
		return
	}

	result, err := h.svc.Shorten(r.Context(), service.ShortenInput{
		LongURL:   req.URL,
		CreatorIP: middleware.ClientIP(r),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("link_created",
		slog.String("short_code", result.ShortCode),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	writeJSON(w, http.StatusOK, dto.ShortenResponse{
		Success:     true,
		ShortURL:    result.ShortURL,
		OriginalURL: result.OriginalURL,
	})
}

// Stats handles GET /stats/{shortCode}.
func (h *LinkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "shortCode")
	if !shortcode.Valid(code) {
		writeError(w, http.StatusNotFound, dto.CodeLinkNotFound, "Link not found")
		return
	}

	view, err := h.svc.Stats(r.Context(), code)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleServiceError maps service errors to HTTP responses.
func (h *LinkHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMissingURL):
		writeError(w, http.StatusBadRequest, dto.CodeMissingURL, "URL is required")
	case errors.Is(err, service.ErrInvalidURL), errors.Is(err, service.ErrURLTooLong):
		writeError(w, http.StatusBadRequest, dto.CodeInvalidURL, err.Error())
	case errors.Is(err, service.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, dto.CodeLinkNotFound, "Link not found")
	case errors.Is(err, shortcode.ErrGenerationExhausted):
		h.logger.Warn("code_generation_exhausted",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, dto.CodeGenerationExhausted, "Could not allocate a short code, try again")
	default:
		h.logger.Error("link_request_failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, dto.CodeInternalError, "An internal error occurred")
	}
}
