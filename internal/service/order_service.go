package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
)

type CreateOrderInput struct {
	ShippingAddress domain.Address `json:"shippingAddress"`
	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

type OrderService struct {
	tx       repository.Transactor
	orders   repository.OrderRepository
	carts    repository.CartRepository
	products repository.ProductRepository
	outbox   repository.OutboxRepository
	cache    cache.CartCache
	gateway  PaymentGateway
	ledger   PaymentLedger
	invoices InvoiceRenderer
	metrics  *metrics.AppMetrics
	log      *slog.Logger
	leadTime time.Duration
}

type OrderDeps struct {
	Tx       repository.Transactor
	Orders   repository.OrderRepository
	Carts    repository.CartRepository
	Products repository.ProductRepository
	Outbox   repository.OutboxRepository
	Cache    cache.CartCache
	Gateway  PaymentGateway
	Ledger   PaymentLedger
	Invoices InvoiceRenderer
	Metrics  *metrics.AppMetrics
	Log      *slog.Logger
	// LeadTime is added to the order date to estimate delivery.
	LeadTime time.Duration
}

func NewOrderService(d OrderDeps) *OrderService {
	return &OrderService{
		tx:       d.Tx,
		orders:   d.Orders,
		carts:    d.Carts,
		products: d.Products,
		outbox:   d.Outbox,
		cache:    d.Cache,
		gateway:  d.Gateway,
		ledger:   d.Ledger,
		invoices: d.Invoices,
		metrics:  d.Metrics,
		log:      d.Log,
		leadTime: d.LeadTime,
	}
}

// Create turns the user's cart into a Pending/Unpaid order. Reading the
// cart, reserving stock, inserting the order, deleting the cart and queuing
// the order.created event happen in one transaction: either all of it is
// durable or none of it is.
func (s *OrderService) Create(ctx context.Context, userID string, in CreateOrderInput) (*domain.Order, error) {
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	if in.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, userID, in.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	var order *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.carts.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		items := make([]domain.OrderItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			product, err := s.products.Get(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if !product.Active {
				return domain.Invalid("product %q is no longer available", product.Name)
			}
			if err := s.products.DecrementStock(ctx, product.ID, line.Quantity); err != nil {
				return err
			}
			items = append(items, domain.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Image:     line.Image,
				Size:      line.Size,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
		}

		now := time.Now().UTC()
		o := &domain.Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			Items:           items,
			ShippingAddress: in.ShippingAddress,
			Status:          domain.OrderStatusPending,
			PaymentStatus:   domain.PaymentStatusUnpaid,
			TotalAmount:     domain.SumItems(items),
			Currency:        domain.Currency,
			IdempotencyKey:  in.IdempotencyKey,
			OrderDate:       now,
			UpdatedAt:       now,
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		if err := s.carts.DeleteCart(ctx, userID); err != nil {
			return err
		}
		if err := s.addEvent(ctx, o, domain.EventOrderCreated, true); err != nil {
			return err
		}
		order = o
		return nil
	})
	if errors.Is(err, repository.ErrDuplicateOrder) && in.IdempotencyKey != "" {
		// lost the race against a retry of the same request
		return s.orders.GetByIdempotencyKey(ctx, userID, in.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	s.invalidateCart(userID)
	s.metrics.RecordOrderCreated(ctx, len(order.Items))
	s.log.InfoContext(ctx, "order created", "order_id", order.ID, "user_id", userID, "total", order.TotalAmount.String())
	return order, nil
}

func (s *OrderService) List(ctx context.Context, userID string, page, limit int) ([]domain.Order, error) {
	return s.orders.List(ctx, domain.OrderFilter{UserID: userID, Page: page, Limit: limit})
}

// ListAll is the back-office listing, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status domain.OrderStatus, page, limit int) ([]domain.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, domain.Invalid("unknown order status %q", status)
	}
	return s.orders.List(ctx, domain.OrderFilter{Status: status, Page: page, Limit: limit})
}

// Get returns the order if it belongs to the user. Other users' orders look
// like missing ones.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) Track(ctx context.Context, userID, orderID string) (domain.Tracking, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return domain.Tracking{}, err
	}
	return o.Track(s.leadTime), nil
}

func (s *OrderService) Invoice(ctx context.Context, userID, orderID string) ([]byte, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	pdf, err := s.invoices.Render(o)
	if err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return pdf, nil
}

// Payments lists the processor attempts recorded for the user's order.
func (s *OrderService) Payments(ctx context.Context, userID, orderID string) ([]*domain.Transaction, error) {
	if _, err := s.Get(ctx, userID, orderID); err != nil {
		return nil, err
	}
	txs, err := s.ledger.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	return txs, nil
}

// UpdateStatus is the back-office transition. Only forward moves along
// Pending → Processing → Shipped → Delivered, or cancellation from Pending
// and Processing, are accepted.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.IsValid() {
		return nil, domain.Invalid("unknown order status %q", next)
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, o.Status, next)
	}
	if next == domain.OrderStatusCancelled {
		return o, s.cancel(ctx, o)
	}

	prevStatus, prevPayment := o.Status, o.PaymentStatus
	o.Status = next
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Save(ctx, o, prevStatus, prevPayment); err != nil {
			return err
		}
		return s.addEvent(ctx, o, domain.EventOrderStatusChanged, false)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order status changed", "order_id", o.ID, "from", prevStatus, "to", next)
	return o, nil
}

// Cancel lets the owner cancel a Pending or Processing order.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, o.Status)
	}
	if err := s.cancel(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// cancel releases the money first: if the processor refuses, the order is
// left as it was.
func (s *OrderService) cancel(ctx context.Context, o *domain.Order) error {
	prevStatus, prevPayment := o.Status, o.PaymentStatus

	if prevPayment.IsPaid() {
		if err := s.gateway.Void(ctx, o.TransactionID, prevPayment == domain.PaymentStatusSettled); err != nil {
			s.log.ErrorContext(ctx, "failed to void payment", "order_id", o.ID, "transaction_id", o.TransactionID, "error", err)
			return err
		}
		// The refund is issued; record it even if the caller is gone.
		var cancel context.CancelFunc
		ctx, cancel = detach(ctx)
		defer cancel()

		o.PaymentStatus = domain.PaymentStatusVoided
		if err := s.ledger.MarkVoided(ctx, o.ID); err != nil {
			s.log.ErrorContext(ctx, "failed to mark ledger voided", "order_id", o.ID, "error", err)
		}
	}

	now := time.Now().UTC()
	o.Status = domain.OrderStatusCancelled
	o.CancelledAt = &now

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Save(ctx, o, prevStatus, prevPayment); err != nil {
			return err
		}
		for _, it := range o.Items {
			err := s.products.IncrementStock(ctx, it.ProductID, it.Quantity)
			if err != nil && !errors.Is(err, repository.ErrProductNotFound) {
				return err
			}
		}
		return s.addEvent(ctx, o, domain.EventOrderCancelled, true)
	})
	if err != nil && o.PaymentStatus == domain.PaymentStatusVoided {
		s.recordVoid(ctx, o, prevStatus, prevPayment, err)
	}
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "order cancelled", "order_id", o.ID, "previous_status", prevStatus)
	return nil
}

// recordVoid stores the voided payment on an order whose cancellation did
// not commit, so a repeated cancel does not void twice.
func (s *OrderService) recordVoid(ctx context.Context, o *domain.Order, prevStatus domain.OrderStatus, prevPayment domain.PaymentStatus, cause error) {
	voided := *o
	voided.Status = prevStatus
	voided.CancelledAt = nil
	if err := s.orders.Save(ctx, &voided, prevStatus, prevPayment); err != nil {
		s.log.ErrorContext(ctx, "payment voided but order not updated", "order_id", o.ID, "transaction_id", o.TransactionID, "cause", cause, "error", err)
		return
	}
	s.log.ErrorContext(ctx, "payment voided but order not cancelled", "order_id", o.ID, "error", cause)
}

func (s *OrderService) addEvent(ctx context.Context, o *domain.Order, eventType string, withItems bool) error {
	return addOrderEvent(ctx, s.outbox, o, eventType, withItems)
}

func addOrderEvent(ctx context.Context, outbox repository.OutboxRepository, o *domain.Order, eventType string, withItems bool) error {
	payload, err := json.Marshal(domain.NewOrderEvent(o, withItems))
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return outbox.Add(ctx, &domain.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: o.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *OrderService) invalidateCart(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", "user_id", userID, "error", err)
	}
}
