package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type WishlistHandler struct {
	wishlist WishlistService
	log      *slog.Logger
}

func NewWishlistHandler(wishlist WishlistService, log *slog.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist, log: log}
}

type WishlistRequestDTO struct {
	ProductID string `json:"productId"`
}

// GET /api/user/wishlist
func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	wl, err := h.wishlist.Get(r.Context(), userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, wl)
}

// POST /api/user/wishlist
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req WishlistRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	wl, err := h.wishlist.Add(r.Context(), userID, req.ProductID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, wl)
}

// DELETE /api/user/wishlist/{productId}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	wl, err := h.wishlist.Remove(r.Context(), userID, chi.URLParam(r, "productId"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, wl)
}

// DELETE /api/user/wishlist
func (h *WishlistHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	if err := h.wishlist.Clear(r.Context(), userID); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "wishlist cleared")
}
