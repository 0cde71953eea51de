package repository

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrCartNotFound     = fmt.Errorf("cart %w", domain.ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("cart item %w", domain.ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", domain.ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", domain.ErrNotFound)
	ErrReviewNotFound   = fmt.Errorf("review %w", domain.ErrNotFound)
	ErrWishlistNotFound = fmt.Errorf("wishlist %w", domain.ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", domain.ErrNotFound)

	ErrDuplicateReview = fmt.Errorf("review for this product already exists: %w", domain.ErrConflict)
	ErrDuplicateOrder  = fmt.Errorf("order with this idempotency key already exists: %w", domain.ErrConflict)
	ErrEmailTaken      = fmt.Errorf("email already registered: %w", domain.ErrConflict)
	ErrStaleOrder      = fmt.Errorf("order was modified concurrently: %w", domain.ErrConflict)
	ErrLineLimit       = fmt.Errorf("cart line would exceed its quantity limit: %w", domain.ErrConflict)
)

type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem refuses with ErrLineLimit when the line would hold more than limit.
	AddItem(ctx context.Context, userID string, item domain.CartItem, limit int) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error)
	SetStock(ctx context.Context, id string, stock int) error
	SetActive(ctx context.Context, id string, active bool) error
	DecrementStock(ctx context.Context, id string, quantity int) error
	IncrementStock(ctx context.Context, id string, quantity int) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error)
	List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	HasDeliveredProduct(ctx context.Context, userID, productID string) (bool, error)
	// Save writes the mutable fields of o, but only if the stored order
	// still has the expected statuses.
	Save(ctx context.Context, o *domain.Order, prevStatus domain.OrderStatus, prevPayment domain.PaymentStatus) error
	// BeginPaymentAttempt returns the attempt number to charge under. An
	// attempt left open by an inconclusive call is returned again; otherwise
	// a new one is started and marked open.
	BeginPaymentAttempt(ctx context.Context, id string) (int, error)
	// ClosePaymentAttempt records that attempt got a definite outcome.
	ClosePaymentAttempt(ctx context.Context, id string, attempt int) error
}

type ReviewRepository interface {
	Create(ctx context.Context, r *domain.Review) error
	Get(ctx context.Context, id string) (*domain.Review, error)
	GetByUserAndProduct(ctx context.Context, userID, productID string) (*domain.Review, error)
	Update(ctx context.Context, id string, in domain.ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, id string) error
	ListByProduct(ctx context.Context, productID string, page, limit int) ([]domain.Review, int64, error)
	Vote(ctx context.Context, reviewID, userID string) (*domain.Review, error)
	Summary(ctx context.Context, productID string) (domain.ReviewSummary, error)
}

type WishlistRepository interface {
	Get(ctx context.Context, userID string) (*domain.Wishlist, error)
	Add(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	Remove(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	Clear(ctx context.Context, userID string) error
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type OutboxRepository interface {
	Add(ctx context.Context, ev *domain.OutboxEvent) error
	GetUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
}
