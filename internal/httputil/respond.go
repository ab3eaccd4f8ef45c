// Package httputil holds the JSON response helpers shared by handlers and
// middleware, and the outbound JSON client used for provider calls.
package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/nextcart/platform/internal/errors"
)

// WriteJSON serialises payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteMessage writes a `{message: ...}` envelope.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"message": message})
}

// WriteError maps err onto the error envelope. Uncategorised errors become a
// generic 500 so internals never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperrors.Internal("", err)
	}

	body := map[string]interface{}{"error": svcErr.Message}
	if len(svcErr.Details) > 0 {
		body["details"] = svcErr.Details
	}
	WriteJSON(w, svcErr.HTTPStatus, body)
}

// WriteErrorMessage writes a bare error envelope with an explicit status.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
