package domain

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether a shopper may still cancel.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusUnpaid     PaymentStatus = "Unpaid"
	PaymentStatusAuthorized PaymentStatus = "Authorized"
	PaymentStatusSettled    PaymentStatus = "Settled"
	PaymentStatusFailed     PaymentStatus = "Failed"
	PaymentStatusVoided     PaymentStatus = "Voided"
)

// Failed stays open for another attempt while the order is still pending.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid:     {PaymentStatusAuthorized, PaymentStatusSettled, PaymentStatusFailed},
	PaymentStatusFailed:     {PaymentStatusAuthorized, PaymentStatusSettled, PaymentStatusFailed},
	PaymentStatusAuthorized: {PaymentStatusSettled, PaymentStatusVoided},
	PaymentStatusSettled:    {PaymentStatusVoided},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsPaid is true once money has been reserved or captured.
func (s PaymentStatus) IsPaid() bool {
	return s == PaymentStatusAuthorized || s == PaymentStatusSettled
}

func (s PaymentStatus) String() string {
	return string(s)
}
