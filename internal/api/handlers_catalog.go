package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/services/catalog"
)

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	products, err := h.deps.Catalog.List(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := pageParams(r)
	products, err := h.deps.Catalog.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input catalog.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.deps.Catalog.Create(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
