package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Products *ProductHandler
	Carts    *CartHandler
	Orders   *OrdersHandler
	Payments *PaymentHandler
	Reviews  *ReviewHandler
	Wishlist *WishlistHandler
	Auth     *AuthHandler
}

type RouterConfig struct {
	Authn              Authenticator
	Metrics            *metrics.AppMetrics
	Log                *slog.Logger
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	CORSAllowedOrigins []string
	// AuthLimiter throttles the unauthenticated auth endpoints per client IP.
	AuthLimiter *IPRateLimiter
	// Ready reports whether the backing stores answer.
	Ready func(ctx context.Context) error
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware(cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				cfg.Log.WarnContext(r.Context(), "readiness check failed", "error", err)
				respondError(w, http.StatusServiceUnavailable, "not_ready", "dependencies unavailable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	authn := AuthMiddleware(cfg.Authn, cfg.Log)
	staff := RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/products", h.Products.List)
		r.Get("/products/{id}", h.Products.Get)
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.AuthLimiter != nil {
					r.Use(cfg.AuthLimiter.Middleware)
				}
				r.Post("/send-otp", h.Auth.SendOTP)
				r.Post("/verify-otp", h.Auth.VerifyOTP)
				r.Post("/complete-signup", h.Auth.CompleteSignup)
				r.Post("/login", h.Auth.Login)
			})
			r.With(authn).Post("/logout", h.Auth.Logout)
			r.With(authn).Get("/me", h.Auth.Me)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/product/{productId}", h.Reviews.ListByProduct)
			r.Get("/{id}", h.Reviews.Get)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Post("/", h.Reviews.Create)
				r.Get("/can-review/{productId}", h.Reviews.CanReview)
				r.Put("/{id}", h.Reviews.Update)
				r.Delete("/{id}", h.Reviews.Delete)
				r.Post("/{id}/vote", h.Reviews.Vote)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Carts.GetCart)
				r.Post("/", h.Carts.AddItem)
				r.Delete("/", h.Carts.Clear)
				r.Put("/{itemId}", h.Carts.UpdateQuantity)
				r.Delete("/{itemId}", h.Carts.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.Orders.CreateOrder)
				r.Get("/", h.Orders.ListOrders)
				r.Get("/{id}", h.Orders.GetOrder)
				r.Get("/{id}/track", h.Orders.TrackOrder)
				r.Post("/{id}/cancel", h.Orders.CancelOrder)
				r.Get("/{id}/payments", h.Orders.ListPayments)
				r.Get("/{id}/invoice", h.Orders.Invoice)
			})

			r.Route("/braintree", func(r chi.Router) {
				r.Get("/token", h.Payments.ClientToken)
				r.Post("/payment", h.Payments.Pay)
				r.Post("/validate-card", h.Payments.ValidateCard)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", h.Wishlist.Get)
				r.Post("/", h.Wishlist.Add)
				r.Delete("/", h.Wishlist.Clear)
				r.Delete("/{productId}", h.Wishlist.Remove)
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authn)

		r.Group(func(r chi.Router) {
			r.Use(staff)
			r.Get("/products", h.Products.AdminList)
			r.Post("/products", h.Products.Create)
			r.Put("/products/{id}", h.Products.Update)
			r.Patch("/products/{id}/stock", h.Products.SetStock)
			r.Delete("/products/{id}", h.Products.Deactivate)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleWorker))
			r.Get("/orders", h.Orders.AdminListOrders)
			r.Put("/orders/{id}/status", h.Orders.UpdateStatus)
		})
	})

	r.Route("/api/superadmin", func(r chi.Router) {
		r.Use(authn)
		r.Use(RequireRole(domain.RoleSuperAdmin))
		r.Post("/users", h.Auth.CreateStaff)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	return otelhttp.NewHandler(c.Handler(r), "storefront")
}
