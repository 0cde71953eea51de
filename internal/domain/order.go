package domain

import (
	"strings"
	"time"
)

type Order struct {
	ID              string        `bson:"_id" json:"id"`
	UserID          string        `bson:"user_id" json:"userId"`
	Items           []OrderItem   `bson:"items" json:"items"`
	ShippingAddress Address       `bson:"shipping_address" json:"shippingAddress"`
	Status          OrderStatus   `bson:"status" json:"orderStatus"`
	PaymentStatus   PaymentStatus `bson:"payment_status" json:"paymentStatus"`
	TotalAmount     Money         `bson:"total_amount" json:"totalAmount"`
	Currency        string        `bson:"currency" json:"currency"`
	PaymentAttempts int           `bson:"payment_attempts" json:"-"`
	// PaymentAttemptOpen is set while the last attempt has no definite answer
	// from the processor. A retry must reuse that attempt's key.
	PaymentAttemptOpen bool `bson:"payment_attempt_open" json:"-"`
	TransactionID   string        `bson:"transaction_id,omitempty" json:"transactionId,omitempty"`
	IdempotencyKey  string        `bson:"idempotency_key,omitempty" json:"-"`
	OrderDate       time.Time     `bson:"order_date" json:"orderDate"`
	UpdatedAt       time.Time     `bson:"updated_at" json:"updatedAt"`
	CancelledAt     *time.Time    `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
}

// OrderItem is frozen at creation; later catalog edits never touch it.
type OrderItem struct {
	ProductID string `bson:"product_id" json:"productId"`
	Name      string `bson:"name" json:"name"`
	Image     string `bson:"image,omitempty" json:"image,omitempty"`
	Size      string `bson:"size,omitempty" json:"size,omitempty"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	UnitPrice Money  `bson:"unit_price" json:"unitPrice"`
}

func (o *Order) ContainsProduct(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

func SumItems(items []OrderItem) Money {
	var total Money
	for _, it := range items {
		total += it.UnitPrice.Times(it.Quantity)
	}
	return total
}

type Address struct {
	FullName   string `bson:"full_name" json:"fullName"`
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postal_code" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

func (a Address) Validate() error {
	required := map[string]string{
		"fullName":   a.FullName,
		"line1":      a.Line1,
		"city":       a.City,
		"postalCode": a.PostalCode,
		"country":    a.Country,
	}
	for _, field := range []string{"fullName", "line1", "city", "postalCode", "country"} {
		if strings.TrimSpace(required[field]) == "" {
			return Invalid("shipping address %s is required", field)
		}
	}
	if a.Phone != "" && !ValidPhone(a.Phone) {
		return Invalid("shipping address phone is malformed")
	}
	return nil
}

type Tracking struct {
	OrderID           string        `json:"orderId"`
	Status            OrderStatus   `json:"orderStatus"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	OrderDate         time.Time     `json:"orderDate"`
	EstimatedDelivery time.Time     `json:"estimatedDelivery"`
	ShippingAddress   Address       `json:"shippingAddress"`
}

func (o *Order) Track(leadTime time.Duration) Tracking {
	return Tracking{
		OrderID:           o.ID,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		OrderDate:         o.OrderDate,
		EstimatedDelivery: o.OrderDate.Add(leadTime),
		ShippingAddress:   o.ShippingAddress,
	}
}

type OrderFilter struct {
	UserID string
	Status OrderStatus
	Page   int
	Limit  int
}
