package domain

import "time"

const MaxItemQuantity = 99

type Cart struct {
	UserID    string     `bson:"user_id" json:"userId"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

// CartItem keeps the product details as they were when the line was added.
type CartItem struct {
	ItemID    string    `bson:"item_id" json:"itemId"`
	ProductID string    `bson:"product_id" json:"productId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	UnitPrice Money     `bson:"unit_price" json:"unitPrice"`
	Name      string    `bson:"name" json:"name"`
	Image     string    `bson:"image,omitempty" json:"image,omitempty"`
	Size      string    `bson:"size,omitempty" json:"size,omitempty"`
	AddedAt   time.Time `bson:"added_at" json:"addedAt"`
}

func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Total() Money {
	var total Money
	for _, it := range c.Items {
		total += it.UnitPrice.Times(it.Quantity)
	}
	return total
}

func (c *Cart) Item(itemID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ItemID == itemID {
			return it, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) ItemByProduct(productID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// CartView is what clients see: the lines plus derived totals.
type CartView struct {
	Items     []CartItem `json:"items"`
	CartCount int        `json:"cartCount"`
	CartTotal Money      `json:"cartTotal"`
}

func (c *Cart) View() CartView {
	items := c.Items
	if items == nil {
		items = []CartItem{}
	}
	return CartView{
		Items:     items,
		CartCount: c.Count(),
		CartTotal: c.Total(),
	}
}

func ValidateQuantity(quantity int) error {
	if quantity < 1 || quantity > MaxItemQuantity {
		return Invalid("quantity must be between 1 and %d", MaxItemQuantity)
	}
	return nil
}
