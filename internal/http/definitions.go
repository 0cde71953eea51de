package http

import (
	"context"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/service"
)

type CatalogService interface {
	ListPublic(ctx context.Context, f domain.ProductFilter) (service.Page[domain.Product], error)
	List(ctx context.Context, f domain.ProductFilter) (service.Page[domain.Product], error)
	GetPublic(ctx context.Context, id string) (*service.ProductDetails, error)
	Create(ctx context.Context, in service.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id string, in service.ProductInput) (*domain.Product, error)
	SetStock(ctx context.Context, id string, stock int) error
	Deactivate(ctx context.Context, id string) error
}

type CartService interface {
	GetCart(ctx context.Context, userID string) (domain.CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (domain.CartView, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (domain.CartView, error)
	RemoveItem(ctx context.Context, userID, itemID string) (domain.CartView, error)
	Clear(ctx context.Context, userID string) (domain.CartView, error)
}

type OrderService interface {
	Create(ctx context.Context, userID string, in service.CreateOrderInput) (*domain.Order, error)
	List(ctx context.Context, userID string, page, limit int) ([]domain.Order, error)
	ListAll(ctx context.Context, status domain.OrderStatus, page, limit int) ([]domain.Order, error)
	Get(ctx context.Context, userID, orderID string) (*domain.Order, error)
	Track(ctx context.Context, userID, orderID string) (domain.Tracking, error)
	Invoice(ctx context.Context, userID, orderID string) ([]byte, error)
	Payments(ctx context.Context, userID, orderID string) ([]*domain.Transaction, error)
	UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error)
	Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error)
}

type PaymentService interface {
	ClientToken(ctx context.Context, userID string) (string, error)
	ValidateCard(number string) (payment.CardInfo, error)
	Pay(ctx context.Context, userID, orderID, nonce string) (*domain.Order, error)
}

type ReviewService interface {
	CanReview(ctx context.Context, userID, productID string) (service.Eligibility, error)
	Create(ctx context.Context, userID, productID string, in domain.ReviewInput) (*domain.Review, error)
	Get(ctx context.Context, id string) (*domain.Review, error)
	Update(ctx context.Context, userID, id string, in domain.ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, session *domain.Session, id string) error
	Vote(ctx context.Context, userID, id string) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID string, page, limit int) (service.ReviewPage, error)
}

type WishlistService interface {
	Get(ctx context.Context, userID string) (*domain.Wishlist, error)
	Add(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	Remove(ctx context.Context, userID, productID string) (*domain.Wishlist, error)
	Clear(ctx context.Context, userID string) error
}

type AuthService interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
	CompleteSignup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Logout(ctx context.Context, session *domain.Session) error
	Me(ctx context.Context, userID string) (*domain.User, error)
	CreateStaff(ctx context.Context, in service.StaffInput) (*domain.User, error)
}

// Authenticator turns a bearer token into a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}
