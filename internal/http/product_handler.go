package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	catalog CatalogService
	log     *slog.Logger
}

func NewProductHandler(catalog CatalogService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log}
}

func productFilter(r *http.Request) domain.ProductFilter {
	q := r.URL.Query()
	return domain.ProductFilter{
		Category: q.Get("category"),
		StoreID:  q.Get("store"),
		Query:    strings.TrimSpace(q.Get("q")),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 20),
	}
}

// GET /api/public/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListPublic(r.Context(), productFilter(r))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GET /api/public/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	details, err := h.catalog.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// GET /api/admin/products includes inactive products.
func (h *ProductHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.List(r.Context(), productFilter(r))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// POST /api/admin/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// PUT /api/admin/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type stockRequest struct {
	Stock *int `json:"stock"`
}

// PATCH /api/admin/products/{id}/stock
func (h *ProductHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if req.Stock == nil {
		respondError(w, http.StatusBadRequest, "invalid_input", "stock is required")
		return
	}
	if err := h.catalog.SetStock(r.Context(), chi.URLParam(r, "id"), *req.Stock); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "stock updated")
}

// DELETE /api/admin/products/{id}
func (h *ProductHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "product deactivated")
}
