package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
)

var ErrAlreadyPaid = fmt.Errorf("%w: order is already paid", domain.ErrConflict)

// settleTimeout bounds the writes that follow a processor call.
const settleTimeout = 15 * time.Second

// detach keeps ctx values but not its cancellation, so bookkeeping for money
// that already moved finishes after the client disconnects.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

type PaymentService struct {
	tx              repository.Transactor
	orders          repository.OrderRepository
	outbox          repository.OutboxRepository
	gateway         PaymentGateway
	ledger          PaymentLedger
	metrics         *metrics.AppMetrics
	log             *slog.Logger
	captureDeferred bool
}

type PaymentDeps struct {
	Tx      repository.Transactor
	Orders  repository.OrderRepository
	Outbox  repository.OutboxRepository
	Gateway PaymentGateway
	Ledger  PaymentLedger
	Metrics *metrics.AppMetrics
	Log     *slog.Logger
	// CaptureDeferred only authorizes the sale; settlement happens later.
	CaptureDeferred bool
}

func NewPaymentService(d PaymentDeps) *PaymentService {
	return &PaymentService{
		tx:              d.Tx,
		orders:          d.Orders,
		outbox:          d.Outbox,
		gateway:         d.Gateway,
		ledger:          d.Ledger,
		metrics:         d.Metrics,
		log:             d.Log,
		captureDeferred: d.CaptureDeferred,
	}
}

func (s *PaymentService) ClientToken(ctx context.Context, userID string) (string, error) {
	return s.gateway.ClientToken(ctx, userID)
}

// ValidateCard checks a raw card number without contacting the processor.
func (s *PaymentService) ValidateCard(number string) (payment.CardInfo, error) {
	return payment.ValidateCard(number)
}

// Pay charges the order total against the nonce.
//
// A decline marks the payment Failed and keeps the order Pending so the
// shopper can retry. A transient processor error leaves the order exactly as
// it was. Success records Settled or Authorized and moves the order to
// Processing.
func (s *PaymentService) Pay(ctx context.Context, userID, orderID, nonce string) (*domain.Order, error) {
	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return nil, domain.Invalid("paymentMethodNonce is required")
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	if o.PaymentStatus.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	if o.Status != domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrInvalidTransition, o.Status)
	}

	attempt, err := s.orders.BeginPaymentAttempt(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	txn, err := s.recordAttempt(ctx, o, userID, attempt)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.Sale(ctx, payment.SaleRequest{
		OrderID:        o.ID,
		Amount:         o.TotalAmount,
		Nonce:          nonce,
		IdempotencyKey: txn.IdempotencyKey,
		Capture:        !s.captureDeferred,
	})

	// The processor has answered, or may have. What follows must not be
	// dropped because the shopper went away.
	settleCtx, cancel := detach(ctx)
	defer cancel()

	if err != nil {
		return nil, s.handleFailure(settleCtx, o, txn, attempt, err)
	}
	return s.handleSuccess(settleCtx, o, txn, attempt, result)
}

// recordAttempt writes the pending ledger row for an attempt. An attempt
// replayed after an inconclusive call keeps its existing row.
func (s *PaymentService) recordAttempt(ctx context.Context, o *domain.Order, userID string, attempt int) (*domain.Transaction, error) {
	txn := &domain.Transaction{
		OrderID:        o.ID,
		UserID:         userID,
		IdempotencyKey: o.ID + "-" + strconv.Itoa(attempt),
		Amount:         o.TotalAmount,
		Currency:       o.Currency,
	}
	err := s.ledger.Record(ctx, txn)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("record payment attempt: %w", err)
	}
	prev, err := s.ledger.GetByKey(ctx, txn.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("load payment attempt: %w", err)
	}
	s.log.InfoContext(ctx, "retrying open payment attempt", "order_id", o.ID, "attempt_key", prev.IdempotencyKey, "ledger_status", prev.Status)
	return prev, nil
}

// handleFailure runs on a context detached from the request.
func (s *PaymentService) handleFailure(ctx context.Context, o *domain.Order, txn *domain.Transaction, attempt int, saleErr error) error {
	reason := saleErr.Error()
	var gwErr *domain.GatewayError
	if errors.As(saleErr, &gwErr) {
		reason = gwErr.Reason
	}

	if !domain.IsDecline(saleErr) {
		// The charge may have gone through. The attempt stays open so the
		// next try replays the same key instead of charging again.
		s.metrics.RecordPayment(ctx, "error", o.TotalAmount)
		s.completeLedger(ctx, txn, domain.TransactionError, "", "", reason)
		s.log.WarnContext(ctx, "payment attempt failed", "order_id", o.ID, "attempt_key", txn.IdempotencyKey, "error", saleErr)
		return saleErr
	}

	s.metrics.RecordPayment(ctx, "declined", o.TotalAmount)
	s.completeLedger(ctx, txn, domain.TransactionDeclined, "", "", reason)
	s.log.InfoContext(ctx, "payment declined", "order_id", o.ID, "attempt_key", txn.IdempotencyKey, "reason", reason)

	prevStatus, prevPayment := o.Status, o.PaymentStatus
	o.PaymentStatus = domain.PaymentStatusFailed
	if err := s.saveWithEvent(ctx, o, prevStatus, prevPayment, attempt); err != nil {
		s.log.ErrorContext(ctx, "failed to record declined payment", "order_id", o.ID, "error", err)
		return err
	}
	return saleErr
}

// handleSuccess runs on a context detached from the request.
func (s *PaymentService) handleSuccess(ctx context.Context, o *domain.Order, txn *domain.Transaction, attempt int, result *domain.PaymentResult) (*domain.Order, error) {
	ledgerStatus := domain.TransactionSettled
	if result.Status == domain.PaymentStatusAuthorized {
		ledgerStatus = domain.TransactionAuthorized
	}
	s.metrics.RecordPayment(ctx, string(ledgerStatus), o.TotalAmount)
	s.completeLedger(ctx, txn, ledgerStatus, result.TransactionID, result.Method, "")

	prevStatus, prevPayment := o.Status, o.PaymentStatus
	o.PaymentStatus = result.Status
	o.Status = domain.OrderStatusProcessing
	o.TransactionID = result.TransactionID

	if err := s.saveWithEvent(ctx, o, prevStatus, prevPayment, attempt); err != nil {
		// the money moved but the order did not: give it back
		s.log.ErrorContext(ctx, "failed to record payment, voiding", "order_id", o.ID, "transaction_id", result.TransactionID, "error", err)
		if vErr := s.gateway.Void(ctx, result.TransactionID, result.Status == domain.PaymentStatusSettled); vErr != nil {
			// left open: a retry replays the key and records this charge
			s.log.ErrorContext(ctx, "compensating void failed", "order_id", o.ID, "transaction_id", result.TransactionID, "error", vErr)
		} else {
			s.completeLedger(ctx, txn, domain.TransactionVoided, result.TransactionID, "", "order update failed")
			if cErr := s.orders.ClosePaymentAttempt(ctx, o.ID, attempt); cErr != nil {
				s.log.ErrorContext(ctx, "failed to close payment attempt", "order_id", o.ID, "attempt_key", txn.IdempotencyKey, "error", cErr)
			}
		}
		if errors.Is(err, repository.ErrStaleOrder) {
			return nil, err
		}
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.log.InfoContext(ctx, "payment captured",
		"order_id", o.ID,
		"transaction_id", result.TransactionID,
		"payment_status", o.PaymentStatus,
		"amount", o.TotalAmount.String())
	return o, nil
}

// saveWithEvent stores the payment outcome and closes the attempt that
// produced it in one transaction.
func (s *PaymentService) saveWithEvent(ctx context.Context, o *domain.Order, prevStatus domain.OrderStatus, prevPayment domain.PaymentStatus, attempt int) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Save(ctx, o, prevStatus, prevPayment); err != nil {
			return err
		}
		if err := s.orders.ClosePaymentAttempt(ctx, o.ID, attempt); err != nil {
			return err
		}
		return addOrderEvent(ctx, s.outbox, o, domain.EventOrderPaymentUpdated, false)
	})
}

// completeLedger never fails the request; the order document is the source
// of truth for the shopper.
func (s *PaymentService) completeLedger(ctx context.Context, txn *domain.Transaction, status domain.TransactionStatus, gatewayTxID, method, reason string) {
	if err := s.ledger.Complete(ctx, txn.ID, status, gatewayTxID, method, reason); err != nil {
		s.log.ErrorContext(ctx, "failed to update payment ledger", "transaction_id", txn.ID, "status", status, "error", err)
	}
}
