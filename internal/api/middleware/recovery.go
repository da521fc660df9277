package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Soba101/FluxADM/internal/api/response"
)

// Recovery converts handler panics into 500 responses. The background
// enrichment goroutine carries its own recover; this one guards the
// synchronous request path.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			val := recover()
			if val == nil {
				return
			}
			slog.Error("handler panic",
				"panic", val,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", w.Header().Get("X-Request-ID"),
				"stack", string(debug.Stack()),
			)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
