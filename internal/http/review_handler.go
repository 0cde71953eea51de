package http

import (
	"log/slog"
	"net/http"

	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ReviewHandler struct {
	reviews ReviewService
	log     *slog.Logger
}

func NewReviewHandler(reviews ReviewService, log *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, log: log}
}

type CreateReviewRequestDTO struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Title     string `json:"title"`
	Comment   string `json:"comment"`
}

// POST /api/user/reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req CreateReviewRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	rev, err := h.reviews.Create(r.Context(), userID, req.ProductID, domain.ReviewInput{
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, rev)
}

// GET /api/user/reviews/product/{productId}
func (h *ReviewHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	page, err := h.reviews.ListByProduct(r.Context(), chi.URLParam(r, "productId"), queryInt(r, "page", 1), queryInt(r, "limit", 10))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GET /api/user/reviews/can-review/{productId}
func (h *ReviewHandler) CanReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	elig, err := h.reviews.CanReview(r.Context(), userID, chi.URLParam(r, "productId"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, elig)
}

// GET /api/user/reviews/{id}
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	rev, err := h.reviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, rev)
}

// PUT /api/user/reviews/{id}
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	var in domain.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	rev, err := h.reviews.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, rev)
}

// DELETE /api/user/reviews/{id}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	if err := h.reviews.Delete(r.Context(), session, chi.URLParam(r, "id")); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "review deleted")
}

// POST /api/user/reviews/{id}/vote
func (h *ReviewHandler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	rev, err := h.reviews.Vote(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, rev)
}
