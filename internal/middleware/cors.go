package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

func corsOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Cache-Control", "X-Internal-Key"},
		MaxAge:         300,
		// Preflights continue to noContent so they are answered with 204.
		OptionsPassthrough: true,
	}
}

// CORS allows any origin and answers preflight requests directly.
func CORS(next http.Handler) http.Handler {
	return cors.Handler(corsOptions())(noContent(next))
}

func noContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
