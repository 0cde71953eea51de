package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
)

var ErrReviewNotAllowed = fmt.Errorf("%w: only customers with a delivered order can review this product", domain.ErrForbidden)

type ReviewService struct {
	reviews  repository.ReviewRepository
	orders   repository.OrderRepository
	products repository.ProductRepository
	users    repository.UserRepository
	log      *slog.Logger
}

func NewReviewService(
	reviews repository.ReviewRepository,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	log *slog.Logger,
) *ReviewService {
	return &ReviewService{reviews: reviews, orders: orders, products: products, users: users, log: log}
}

// ReviewPage is a page of reviews with the product's rating summary.
type ReviewPage struct {
	Page[domain.Review]
	Summary domain.ReviewSummary `json:"summary"`
}

type Eligibility struct {
	CanReview      bool `json:"canReview"`
	AlreadyWritten bool `json:"alreadyReviewed"`
}

// CanReview requires a delivered order containing the product and no
// earlier review by the same user.
func (s *ReviewService) CanReview(ctx context.Context, userID, productID string) (Eligibility, error) {
	delivered, err := s.orders.HasDeliveredProduct(ctx, userID, productID)
	if err != nil {
		return Eligibility{}, err
	}
	_, err = s.reviews.GetByUserAndProduct(ctx, userID, productID)
	switch {
	case err == nil:
		return Eligibility{AlreadyWritten: true}, nil
	case errors.Is(err, repository.ErrReviewNotFound):
		return Eligibility{CanReview: delivered}, nil
	default:
		return Eligibility{}, err
	}
}

func (s *ReviewService) Create(ctx context.Context, userID, productID string, in domain.ReviewInput) (*domain.Review, error) {
	if productID == "" {
		return nil, domain.Invalid("productId is required")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}
	delivered, err := s.orders.HasDeliveredProduct(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if !delivered {
		return nil, ErrReviewNotAllowed
	}

	now := time.Now().UTC()
	rev := &domain.Review{
		ID:               uuid.NewString(),
		UserID:           userID,
		ProductID:        productID,
		Rating:           in.Rating,
		Title:            in.Title,
		Comment:          in.Comment,
		Voters:           []string{},
		VerifiedPurchase: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if u, err := s.users.GetByID(ctx, userID); err == nil {
		rev.UserName = u.Name
	} else {
		s.log.WarnContext(ctx, "failed to load reviewer name", "user_id", userID, "error", err)
	}

	if err := s.reviews.Create(ctx, rev); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "review created", "review_id", rev.ID, "product_id", productID, "rating", rev.Rating)
	return rev, nil
}

func (s *ReviewService) Get(ctx context.Context, id string) (*domain.Review, error) {
	return s.reviews.Get(ctx, id)
}

// Update is allowed for the author only.
func (s *ReviewService) Update(ctx context.Context, userID, id string, in domain.ReviewInput) (*domain.Review, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	rev, err := s.reviews.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return s.reviews.Update(ctx, id, in)
}

// Delete is allowed for the author and for admins.
func (s *ReviewService) Delete(ctx context.Context, session *domain.Session, id string) error {
	rev, err := s.reviews.Get(ctx, id)
	if err != nil {
		return err
	}
	if rev.UserID != session.UserID && !session.IsAdmin() {
		return domain.ErrForbidden
	}
	return s.reviews.Delete(ctx, id)
}

// Vote adds one helpful vote per user; voting again changes nothing.
func (s *ReviewService) Vote(ctx context.Context, userID, id string) (*domain.Review, error) {
	return s.reviews.Vote(ctx, id, userID)
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID string, page, limit int) (ReviewPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	items, total, err := s.reviews.ListByProduct(ctx, productID, page, limit)
	if err != nil {
		return ReviewPage{}, err
	}
	if items == nil {
		items = []domain.Review{}
	}
	summary, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		return ReviewPage{}, err
	}
	return ReviewPage{
		Page:    Page[domain.Review]{Items: items, Total: total, Page: page, Limit: limit},
		Summary: summary,
	}, nil
}
