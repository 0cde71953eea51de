package domain

import (
	"strings"
	"time"
)

type Product struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Category    string    `bson:"category" json:"category"`
	StoreID     string    `bson:"store_id" json:"storeId"`
	Price       Money     `bson:"price" json:"price"`
	OldPrice    Money     `bson:"old_price" json:"oldPrice"`
	Stock       int       `bson:"stock" json:"stock"`
	Size        string    `bson:"size,omitempty" json:"size,omitempty"`
	Active      bool      `bson:"active" json:"active"`
	Images      []string  `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("name is required")
	}
	if p.Price < 0 || p.OldPrice < 0 {
		return Invalid("price must not be negative")
	}
	if p.Stock < 0 {
		return Invalid("stock must not be negative")
	}
	return nil
}

func (p *Product) Discount() int {
	return DiscountPercent(p.OldPrice, p.Price)
}

type ProductFilter struct {
	Category   string
	StoreID    string
	Query      string
	ActiveOnly bool
	Page       int
	Limit      int
}

// Normalize clamps paging to sane bounds.
func (f *ProductFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}
