package http

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/service"
)

type stubAuthn struct{}

func (stubAuthn) Authenticate(_ context.Context, token string) (*domain.Session, error) {
	switch token {
	case "user-token":
		return &domain.Session{UserID: "u1", Roles: []domain.Role{domain.RoleUser}, TokenID: "jti-1"}, nil
	case "admin-token":
		return &domain.Session{UserID: "a1", Roles: []domain.Role{domain.RoleAdmin}, TokenID: "jti-2"}, nil
	case "worker-token":
		return &domain.Session{UserID: "w1", Roles: []domain.Role{domain.RoleWorker}, TokenID: "jti-3"}, nil
	case "root-token":
		return &domain.Session{UserID: "r1", Roles: []domain.Role{domain.RoleSuperAdmin}, TokenID: "jti-4"}, nil
	}
	return nil, domain.ErrUnauthorized
}

// The stubs embed the interface; calling anything a test did not set up panics.

type stubCatalog struct {
	CatalogService
	page    service.Page[domain.Product]
	details *service.ProductDetails
	err     error
	filter  domain.ProductFilter
}

func (s *stubCatalog) ListPublic(_ context.Context, f domain.ProductFilter) (service.Page[domain.Product], error) {
	s.filter = f
	return s.page, s.err
}

func (s *stubCatalog) GetPublic(context.Context, string) (*service.ProductDetails, error) {
	return s.details, s.err
}

func (s *stubCatalog) Create(_ context.Context, in service.ProductInput) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Product{ID: "new", Name: in.Name}, nil
}

type stubCarts struct {
	CartService
	mu     sync.Mutex
	view   domain.CartView
	err    error
	userID string
	qty    int
}

func (s *stubCarts) GetCart(_ context.Context, userID string) (domain.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	return s.view, s.err
}

func (s *stubCarts) AddItem(_ context.Context, userID, _ string, quantity int) (domain.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID, s.qty = userID, quantity
	return s.view, s.err
}

func (s *stubCarts) RemoveItem(context.Context, string, string) (domain.CartView, error) {
	return s.view, s.err
}

type stubOrders struct {
	OrderService
	order          *domain.Order
	orders         []domain.Order
	err            error
	idempotencyKey string
	status         domain.OrderStatus
	pdf            []byte
}

func (s *stubOrders) Create(_ context.Context, _ string, in service.CreateOrderInput) (*domain.Order, error) {
	s.idempotencyKey = in.IdempotencyKey
	return s.order, s.err
}

func (s *stubOrders) List(context.Context, string, int, int) ([]domain.Order, error) {
	return s.orders, s.err
}

func (s *stubOrders) Get(context.Context, string, string) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) ListAll(_ context.Context, status domain.OrderStatus, _, _ int) ([]domain.Order, error) {
	s.status = status
	return s.orders, s.err
}

func (s *stubOrders) UpdateStatus(_ context.Context, _ string, next domain.OrderStatus) (*domain.Order, error) {
	s.status = next
	return s.order, s.err
}

func (s *stubOrders) Invoice(context.Context, string, string) ([]byte, error) {
	return s.pdf, s.err
}

type stubPayments struct {
	PaymentService
	order *domain.Order
	err   error
}

func (s *stubPayments) Pay(context.Context, string, string, string) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubPayments) ValidateCard(number string) (payment.CardInfo, error) {
	return payment.ValidateCard(number)
}

type stubAuth struct {
	AuthService
	err       error
	loggedOut *domain.Session
}

func (s *stubAuth) SendOTP(context.Context, string) error {
	return s.err
}

func (s *stubAuth) VerifyOTP(context.Context, string, string) error {
	return s.err
}

func (s *stubAuth) Logout(_ context.Context, session *domain.Session) error {
	s.loggedOut = session
	return s.err
}

func (s *stubAuth) CreateStaff(_ context.Context, in service.StaffInput) (*domain.User, error) {
	return &domain.User{ID: "staff-1", Email: in.Email, Roles: in.Roles}, s.err
}

type testServer struct {
	handler  http.Handler
	catalog  *stubCatalog
	carts    *stubCarts
	orders   *stubOrders
	payments *stubPayments
	auth     *stubAuth
}

func newTestServer(t *testing.T, limiter *IPRateLimiter) *testServer {
	t.Helper()
	log := logger.Discard()
	ts := &testServer{
		catalog:  &stubCatalog{},
		carts:    &stubCarts{},
		orders:   &stubOrders{},
		payments: &stubPayments{},
		auth:     &stubAuth{},
	}
	ts.handler = NewRouter(Handlers{
		Products: NewProductHandler(ts.catalog, log),
		Carts:    NewCartHandler(ts.carts, log),
		Orders:   NewOrdersHandler(ts.orders, log),
		Payments: NewPaymentHandler(ts.payments, log),
		Reviews:  NewReviewHandler(nil, log),
		Wishlist: NewWishlistHandler(nil, log),
		Auth:     NewAuthHandler(ts.auth, log),
	}, RouterConfig{
		Authn:              stubAuthn{},
		Log:                log,
		CORSAllowedOrigins: []string{"*"},
		AuthLimiter:        limiter,
	})
	return ts
}
