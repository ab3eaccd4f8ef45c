package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/middleware"
	"github.com/nextcart/platform/internal/queue"
	"github.com/nextcart/platform/internal/services/notification"
	usersvc "github.com/nextcart/platform/internal/services/user"
)

func decodeJSON(r *http.Request, into interface{}) error {
	if r.Body == nil {
		return apperrors.Validation("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return apperrors.Validation("malformed JSON body")
	}
	return nil
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var input usersvc.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.deps.Users.Register(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Welcome email is best-effort and never blocks registration.
	if err := h.deps.Jobs.Enqueue(r.Context(), queue.KindEmail, notification.Email{
		Type:      "welcome",
		Recipient: created.Email,
		Data:      map[string]string{"username": created.Username},
	}); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("enqueue welcome email")
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "user created successfully",
		"user_id": created.ID,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var fields []string
	if input.Email == "" {
		fields = append(fields, "email")
	}
	if input.Password == "" {
		fields = append(fields, "password")
	}
	if len(fields) > 0 {
		httputil.WriteError(w, apperrors.ValidationFields(fields))
		return
	}

	token, u, err := h.deps.Users.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "login successful",
		"token":   token,
		"user":    u,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionTokenFrom(r.Context())
	if token != "" {
		if err := h.deps.Users.Logout(r.Context(), token); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: middleware.SessionCookie, Value: "", Path: "/", MaxAge: -1})
	httputil.WriteMessage(w, http.StatusOK, "logged out")
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	u, err := h.deps.Users.Get(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := decodeJSON(r, &updates); err != nil {
		httputil.WriteError(w, err)
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	u, err := h.deps.Users.UpdateProfile(r.Context(), principal.UserID, updates)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}
