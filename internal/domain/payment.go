package domain

import "time"

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionAuthorized TransactionStatus = "authorized"
	TransactionSettled    TransactionStatus = "settled"
	TransactionDeclined   TransactionStatus = "declined"
	TransactionError      TransactionStatus = "error"
	TransactionVoided     TransactionStatus = "voided"
)

// Transaction is one attempt against the payment processor.
type Transaction struct {
	ID                   string            `json:"id"`
	OrderID              string            `json:"orderId"`
	UserID               string            `json:"userId"`
	IdempotencyKey       string            `json:"-"`
	Amount               Money             `json:"amount"`
	Currency             string            `json:"currency"`
	Status               TransactionStatus `json:"status"`
	Method               string            `json:"method"`
	GatewayTransactionID string            `json:"transactionId,omitempty"`
	FailureReason        string            `json:"-"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// PaymentResult is what the processor returned for a successful sale.
type PaymentResult struct {
	TransactionID string
	Status        PaymentStatus
	Method        string
}
