package handler

import (
	"encoding/json"
	"net/http"

	"tillsync/internal/datalayer"
	"tillsync/internal/model"
	"tillsync/pkg/apierror"
	"tillsync/pkg/response"

	"github.com/go-chi/chi/v5"
)

// CatalogHandler serves catalog reads and writes. Reads come from the
// local mirror; writes go through the local-first path.
type CatalogHandler struct {
	dl *datalayer.DataLayer
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(dl *datalayer.DataLayer) *CatalogHandler {
	return &CatalogHandler{dl: dl}
}

// ListCategories handles GET /api/v1/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.dl.ListCategories(r.Context())
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	response.OK(w, cats)
}

// UpsertCategory handles PUT /api/v1/categories
func (h *CatalogHandler) UpsertCategory(w http.ResponseWriter, r *http.Request) {
	var c model.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	saved, err := h.dl.UpsertCategory(r.Context(), c)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, saved)
}

// ListProducts handles GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.dl.ListProducts(r.Context())
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	response.OK(w, products)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	p, err := h.dl.GetProduct(r.Context(), id)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, p)
}

// UpsertProduct handles PUT /api/v1/products
func (h *CatalogHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	saved, err := h.dl.UpsertProduct(r.Context(), p)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, saved)
}

// GetStock handles GET /api/v1/products/{id}/stock
func (h *CatalogHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.Error(w, apierror.BadRequest("id is required"))
		return
	}

	st, err := h.dl.GetStock(r.Context(), id)
	if err != nil {
		response.Error(w, mapError(err))
		return
	}
	response.OK(w, st)
}
