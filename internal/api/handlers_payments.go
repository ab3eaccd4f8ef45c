package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/middleware"
)

// webhookSignatureHeader carries the hex HMAC-SHA256 of the raw body.
const webhookSignatureHeader = "X-Signature"

type processPaymentRequest struct {
	OrderID string `json:"order_id"`
}

func (h *handler) processPayment(w http.ResponseWriter, r *http.Request) {
	var input processPaymentRequest
	if err := decodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if input.OrderID == "" {
		httputil.WriteError(w, apperrors.ValidationFields([]string{"order_id"}))
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	o, err := h.deps.Orders.Get(r.Context(), principal.UserID, input.OrderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.deps.Payments.Charge(r.Context(), o.ID, principal.UserID, o.TotalCents)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// paymentWebhook reconciles provider callbacks. The caller proves itself
// with an HMAC over the raw body, not a session.
func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, apperrors.Validation("unreadable request body"))
		return
	}

	if !verifySignature(h.cfg.WebhookSecret, body, r.Header.Get(webhookSignatureHeader)) {
		h.log.WithContext(r.Context()).Warn("webhook signature rejected")
		httputil.WriteError(w, apperrors.Unauthorized("invalid webhook signature"))
		return
	}

	reference := gjson.GetBytes(body, "reference").String()
	status := gjson.GetBytes(body, "status").String()
	if reference == "" || status == "" {
		httputil.WriteError(w, apperrors.ValidationFields([]string{"reference", "status"}))
		return
	}

	p, err := h.deps.Payments.Settle(r.Context(), reference, status == "succeeded")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "webhook processed",
		"payment": p,
	})
}

func verifySignature(secret, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
