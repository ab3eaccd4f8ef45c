package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nextcart/platform/internal/domain/order"
	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/httputil"
)

func (h *handler) adminAnalytics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.deps.Analytics.Summary(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"event_counts": counts})
}

func (h *handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	orders, err := h.deps.Orders.ListAll(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *handler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var input updateStatusRequest
	if err := decodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if input.Status == "" {
		httputil.WriteError(w, apperrors.ValidationFields([]string{"status"}))
		return
	}

	updated, err := h.deps.Orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], order.Status(input.Status))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}
