package domain

import "time"

const (
	EventOrderCreated        = "order.created"
	EventOrderStatusChanged  = "order.status_changed"
	EventOrderPaymentUpdated = "order.payment_updated"
	EventOrderCancelled      = "order.cancelled"
)

// OutboxEvent is written next to the order change it describes and shipped
// to the broker later.
type OutboxEvent struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregate_id"`
	EventType   string     `bson:"event_type"`
	Payload     []byte     `bson:"payload"`
	Processed   bool       `bson:"processed"`
	CreatedAt   time.Time  `bson:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty"`
}

// OrderEvent is the payload of every order outbox event.
type OrderEvent struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TotalAmount   string        `json:"total_amount"`
	Currency      string        `json:"currency"`
	Items         []OrderItem   `json:"items,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewOrderEvent(o *Order, withItems bool) OrderEvent {
	ev := OrderEvent{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount.String(),
		Currency:      o.Currency,
		OccurredAt:    time.Now().UTC(),
	}
	if withItems {
		ev.Items = o.Items
	}
	return ev
}
