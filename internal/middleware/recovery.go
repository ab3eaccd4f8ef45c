package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/logging"
)

// Recovery is the top-level request boundary: any panic escaping the chain is
// logged with full context and converted into a generic 500.
func Recovery(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithContext(r.Context()).WithFields(map[string]interface{}{
						"panic":  rec,
						"method": r.Method,
						"path":   r.URL.Path,
					}).Error("request handler panicked")
					httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
