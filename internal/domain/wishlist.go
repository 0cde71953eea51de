package domain

import "time"

type Wishlist struct {
	UserID     string    `bson:"user_id" json:"userId"`
	ProductIDs []string  `bson:"product_ids" json:"productIds"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
}

func (w *Wishlist) Contains(productID string) bool {
	for _, id := range w.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
