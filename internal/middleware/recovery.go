package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/penshort/shortkv/internal/handler/dto"
)

// Recoverer is a middleware that recovers from panics.
// It logs the panic and returns a JSON 500 in the API error envelope.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				writeError(w, http.StatusInternalServerError, dto.CodeInternalError, "An internal error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
