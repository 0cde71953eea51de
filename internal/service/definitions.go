package service

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
)

// PaymentGateway is the card processor as seen by the services.
type PaymentGateway interface {
	ClientToken(ctx context.Context, customerID string) (string, error)
	Sale(ctx context.Context, req payment.SaleRequest) (*domain.PaymentResult, error)
	Void(ctx context.Context, transactionID string, settled bool) error
}

// PaymentLedger records every attempt made against the processor.
type PaymentLedger interface {
	Record(ctx context.Context, tx *domain.Transaction) error
	Complete(ctx context.Context, id string, status domain.TransactionStatus, gatewayTxID, method, reason string) error
	MarkVoided(ctx context.Context, orderID string) error
	GetByKey(ctx context.Context, key string) (*domain.Transaction, error)
	ListByOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error)
}

type OTPStore interface {
	Save(ctx context.Context, email, code string) error
	Verify(ctx context.Context, email, code string) error
	IsVerified(ctx context.Context, email string) (bool, error)
	ClearVerified(ctx context.Context, email string) error
}

type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type InvoiceRenderer interface {
	Render(o *domain.Order) ([]byte, error)
}

// Page is one page of a listing plus the total match count.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}
