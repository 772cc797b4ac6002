package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/penshort/shortkv/internal/analytics"
	"github.com/penshort/shortkv/internal/handler/dto"
	"github.com/penshort/shortkv/internal/middleware"
	"github.com/penshort/shortkv/internal/model"
	"github.com/penshort/shortkv/internal/service"
	"github.com/penshort/shortkv/internal/shortcode"
)

// RedirectHandler handles redirect requests.
type RedirectHandler struct {
	svc    *service.LinkService
	logger *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(svc *service.LinkService, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		svc:    svc,
		logger: logger,
	}
}

// Redirect handles GET and HEAD /{shortCode}. HEAD answers with the same
// redirect but is not counted as a click.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	if !shortcode.Valid(shortCode) {
		h.writeError(w, http.StatusNotFound, dto.CodeNotFound, "Resource not found")
		return
	}

	start := time.Now()
	geo := analytics.GeoFromRequest(r)

	var (
		record *model.URLRecord
		err    error
	)
	if r.Method == http.MethodHead {
		record, err = h.svc.Lookup(r.Context(), shortCode)
	} else {
		record, err = h.svc.Resolve(r.Context(), shortCode, geo)
	}
	duration := time.Since(start)

	if err != nil {
		h.handleRedirectError(w, r, shortCode, err, duration)
		return
	}

	h.logger.Info("redirect_success",
		slog.String("short_code", shortCode),
		slog.String("method", r.Method),
		slog.Int64("clicks", record.Clicks),
		slog.Any("geo", geo),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
	)

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, record.LongURL, http.StatusFound)
}

// handleRedirectError handles errors during redirect resolution.
func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, r *http.Request, shortCode string, err error, duration time.Duration) {
	if errors.Is(err, service.ErrLinkNotFound) {
		h.logger.Info("redirect_not_found",
			slog.String("short_code", shortCode),
			slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
		)
		h.writeError(w, http.StatusNotFound, dto.CodeLinkNotFound, "Link not found")
		return
	}

	h.logger.Error("redirect_error",
		slog.String("short_code", shortCode),
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
	)
	h.writeError(w, http.StatusInternalServerError, dto.CodeInternalError, "An internal error occurred")
}

// writeError writes a JSON error response for redirect failures.
func (h *RedirectHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Cache-Control", "private, max-age=0")
	writeError(w, status, code, message)
}
