package handler

import (
	"net/http"

	"fz-pos-api/internal/service"
	"fz-pos-api/pkg/response"
)

// CatalogHandler serves the passive product grid.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Browse handles GET /api/v1/pos/products?q=
func (h *CatalogHandler) Browse(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Browse(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, products)
}

// GenerateQR handles POST /api/v1/pos/generate-qr
func (h *CatalogHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.GenerateQR(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, map[string]int{"count": n})
}
