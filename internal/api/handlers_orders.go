package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/middleware"
	"github.com/nextcart/platform/internal/queue"
	"github.com/nextcart/platform/internal/services/analytics"
	"github.com/nextcart/platform/internal/services/notification"
	ordersvc "github.com/nextcart/platform/internal/services/order"
)

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input ordersvc.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	created, err := h.deps.Orders.Create(r.Context(), principal.UserID, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Confirmation email and the analytics event run off the request path.
	u, userErr := h.deps.Users.Get(r.Context(), principal.UserID)
	if userErr == nil {
		if err := h.deps.Jobs.Enqueue(r.Context(), queue.KindEmail, notification.Email{
			Type:      "order_confirmation",
			Recipient: u.Email,
			Data:      map[string]string{"order_id": created.ID},
		}); err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("enqueue confirmation email")
		}
	}
	if err := h.deps.Jobs.Enqueue(r.Context(), queue.KindAnalytics, analytics.Event{
		Name: "order_created",
		Fields: map[string]interface{}{
			"user_id":  principal.UserID,
			"order_id": created.ID,
			"value":    created.TotalCents,
		},
	}); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("enqueue analytics event")
	}

	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	orders, err := h.deps.Orders.ListForUser(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	o, err := h.deps.Orders.Get(r.Context(), principal.UserID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	o, err := h.deps.Orders.Cancel(r.Context(), principal.UserID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}
