package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	log      *slog.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	products repository.ProductRepository,
	c cache.CartCache,
	log *slog.Logger,
) *CartService {
	return &CartService{repo: repo, products: products, cache: c, log: log}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (domain.CartView, error) {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return domain.CartView{}, err
	}
	return cart.View(), nil
}

func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", "user_id", userID, "error", err)
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(setCtx, userID, cart); err != nil {
				s.log.Warn("cache set error", "user_id", userID, "error", err)
			}
		}()
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// AddItem adds quantity of a product, merging with an existing line for the
// same product. The line keeps the price the product had at this moment.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (domain.CartView, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.CartView{}, err
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return domain.CartView{}, err
	}
	if !product.Active {
		return domain.CartView{}, repository.ErrProductNotFound
	}

	// The merged line may hold at most this much; the repository enforces it
	// atomically against concurrent adds.
	limit := min(domain.MaxItemQuantity, product.Stock)

	item := domain.CartItem{
		ItemID:    uuid.NewString(),
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		Name:      product.Name,
		Size:      product.Size,
	}
	if len(product.Images) > 0 {
		item.Image = product.Images[0]
	}

	cart, err := s.repo.AddItem(ctx, userID, item, limit)
	if errors.Is(err, repository.ErrLineLimit) {
		if product.Stock < domain.MaxItemQuantity {
			return domain.CartView{}, domain.ErrInsufficientStock
		}
		return domain.CartView{}, domain.Invalid("quantity must be between 1 and %d", domain.MaxItemQuantity)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "repo add item error", "user_id", userID, "product_id", productID, "error", err)
		return domain.CartView{}, err
	}
	s.invalidateCache(userID)
	return cart.View(), nil
}

// UpdateQuantity sets the quantity of a line. Zero is rejected; removing a
// line goes through RemoveItem.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (domain.CartView, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.CartView{}, err
	}

	current, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.CartView{}, repository.ErrItemNotFound
	}
	if err != nil {
		return domain.CartView{}, err
	}
	line, ok := current.Item(itemID)
	if !ok {
		return domain.CartView{}, repository.ErrItemNotFound
	}
	product, err := s.products.Get(ctx, line.ProductID)
	if err != nil {
		return domain.CartView{}, err
	}
	if quantity > product.Stock {
		return domain.CartView{}, domain.ErrInsufficientStock
	}

	cart, err := s.repo.UpdateItemQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		s.log.ErrorContext(ctx, "repo update item quantity error", "user_id", userID, "item_id", itemID, "error", err)
		return domain.CartView{}, err
	}
	s.invalidateCache(userID)
	return cart.View(), nil
}

// RemoveItem is idempotent: removing an absent line, or from an absent
// cart, returns the cart as it is.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (domain.CartView, error) {
	cart, err := s.repo.RemoveItem(ctx, userID, itemID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return (&domain.Cart{UserID: userID}).View(), nil
	}
	if err != nil {
		s.log.ErrorContext(ctx, "repo remove item error", "user_id", userID, "item_id", itemID, "error", err)
		return domain.CartView{}, err
	}
	s.invalidateCache(userID)
	return cart.View(), nil
}

func (s *CartService) Clear(ctx context.Context, userID string) (domain.CartView, error) {
	if err := s.repo.DeleteCart(ctx, userID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.ErrorContext(ctx, "repo delete cart error", "user_id", userID, "error", err)
		return domain.CartView{}, err
	}
	s.invalidateCache(userID)
	return (&domain.Cart{UserID: userID}).View(), nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", "user_id", userID, "error", err)
	}
}
