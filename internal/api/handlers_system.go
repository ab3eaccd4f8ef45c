package api

import (
	"net/http"

	"github.com/nextcart/platform/internal/httputil"
)

// healthCheck always answers 200; degradation is reported in the body so
// load balancers keep routing while operators see the failing backend.
func (h *handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.deps.Health.Check(r.Context())
	httputil.WriteJSON(w, http.StatusOK, status)
}
