package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

type WishlistService struct {
	wishlists repository.WishlistRepository
	products  repository.ProductRepository
	log       *slog.Logger
}

func NewWishlistService(wishlists repository.WishlistRepository, products repository.ProductRepository, log *slog.Logger) *WishlistService {
	return &WishlistService{wishlists: wishlists, products: products, log: log}
}

func (s *WishlistService) Get(ctx context.Context, userID string) (*domain.Wishlist, error) {
	w, err := s.wishlists.Get(ctx, userID)
	if errors.Is(err, repository.ErrWishlistNotFound) {
		return &domain.Wishlist{UserID: userID, ProductIDs: []string{}}, nil
	}
	return w, err
}

// Add is idempotent: a product already on the list stays there once.
func (s *WishlistService) Add(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	if productID == "" {
		return nil, domain.Invalid("productId is required")
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.wishlists.Add(ctx, userID, productID)
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	w, err := s.wishlists.Remove(ctx, userID, productID)
	if errors.Is(err, repository.ErrWishlistNotFound) {
		return &domain.Wishlist{UserID: userID, ProductIDs: []string{}}, nil
	}
	return w, err
}

func (s *WishlistService) Clear(ctx context.Context, userID string) error {
	err := s.wishlists.Clear(ctx, userID)
	if errors.Is(err, repository.ErrWishlistNotFound) {
		return nil
	}
	return err
}
