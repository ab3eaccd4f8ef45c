package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/httputil"
)

// BodyDecoder bounds request payload size and rejects malformed JSON bodies
// before any handler runs. The buffered body is restored so handlers can
// decode it into their own types.
func BodyDecoder(maxBytes int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 ||
				(r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			if err != nil {
				httputil.WriteError(w, apperrors.Validation("request body too large"))
				return
			}

			if isJSONContent(r) && len(bytes.TrimSpace(body)) > 0 {
				if !json.Valid(body) {
					httputil.WriteError(w, apperrors.Validation("malformed JSON body"))
					return
				}
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func isJSONContent(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.HasPrefix(strings.ToLower(ct), "application/json")
}
