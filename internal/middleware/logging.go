package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"beast-crm/internal/logging"
)

// RequestLogger puts a child logger carrying the request details into the
// context. Handlers pick it up with logging.FromContext.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			if id := chimw.GetReqID(r.Context()); id != "" {
				reqLog = reqLog.With(logging.RequestID(id))
			}

			reqLog.Debug("request started")
			next.ServeHTTP(w, r.WithContext(logging.WithContext(r.Context(), reqLog)))
		})
	}
}
