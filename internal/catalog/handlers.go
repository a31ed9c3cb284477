package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
)

// Handlers exposes the read-only catalog endpoints.
type Handlers struct {
	Svc Service
}

// List handles GET /api/v1/products.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.Svc.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load products", nil)
		return
	}
	if products == nil {
		products = []Product{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"products": products})
}

// Get handles GET /api/v1/products/{id}.
func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Svc.GetProduct(r.Context(), id)
	if err != nil {
		if err == ErrNotFound {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, p)
}
