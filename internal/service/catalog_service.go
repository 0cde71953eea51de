package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
)

type ProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	StoreID     string   `json:"storeId"`
	Price       string   `json:"price"`
	OldPrice    string   `json:"oldPrice"`
	Stock       int      `json:"stock"`
	Size        string   `json:"size"`
	Images      []string `json:"images"`
}

func (in ProductInput) toProduct() (*domain.Product, error) {
	price, err := domain.ParseMoney(in.Price)
	if err != nil {
		return nil, err
	}
	var old domain.Money
	if strings.TrimSpace(in.OldPrice) != "" {
		if old, err = domain.ParseMoney(in.OldPrice); err != nil {
			return nil, err
		}
	}
	p := &domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		StoreID:     in.StoreID,
		Price:       price,
		OldPrice:    old,
		Stock:       in.Stock,
		Size:        in.Size,
		Images:      in.Images,
	}
	return p, p.Validate()
}

// ProductDetails is a product as shown on its page.
type ProductDetails struct {
	*domain.Product
	DiscountPercent int                  `json:"discountPercent"`
	Rating          domain.ReviewSummary `json:"rating"`
}

type CatalogService struct {
	products repository.ProductRepository
	reviews  repository.ReviewRepository
	log      *slog.Logger
}

func NewCatalogService(products repository.ProductRepository, reviews repository.ReviewRepository, log *slog.Logger) *CatalogService {
	return &CatalogService{products: products, reviews: reviews, log: log}
}

// ListPublic only ever returns active products.
func (s *CatalogService) ListPublic(ctx context.Context, f domain.ProductFilter) (Page[domain.Product], error) {
	f.ActiveOnly = true
	return s.List(ctx, f)
}

func (s *CatalogService) List(ctx context.Context, f domain.ProductFilter) (Page[domain.Product], error) {
	f.Normalize()
	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return Page[domain.Product]{}, err
	}
	if items == nil {
		items = []domain.Product{}
	}
	return Page[domain.Product]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// GetPublic hides inactive products.
func (s *CatalogService) GetPublic(ctx context.Context, id string) (*ProductDetails, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, repository.ErrProductNotFound
	}

	details := &ProductDetails{Product: p, DiscountPercent: p.Discount(), Rating: domain.ReviewSummary{ProductID: p.ID}}
	summary, err := s.reviews.Summary(ctx, id)
	if err != nil {
		// the page still renders without a rating
		s.log.WarnContext(ctx, "failed to load rating summary", "product_id", id, "error", err)
		return details, nil
	}
	details.Rating = summary
	return details, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	p, err := in.toProduct()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.Active = true
	p.CreatedAt, p.UpdatedAt = now, now

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.log.InfoContext(ctx, "product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	current, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := in.toProduct()
	if err != nil {
		return nil, err
	}
	p.ID = current.ID
	p.Active = current.Active
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) SetStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return domain.Invalid("stock must not be negative")
	}
	return s.products.SetStock(ctx, id, stock)
}

// Deactivate hides the product from the storefront. Orders keep their own
// copy of the product details.
func (s *CatalogService) Deactivate(ctx context.Context, id string) error {
	if err := s.products.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("deactivate product: %w", err)
	}
	return nil
}
