package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Invalid wraps ErrInvalidInput with a message meant for the client.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

type GatewayErrorKind string

const (
	GatewayDecline   GatewayErrorKind = "decline"
	GatewayTransient GatewayErrorKind = "transient"
)

// GatewayError is returned by the payment adapter. Reason is the processor's
// message and is never sent to clients.
type GatewayError struct {
	Kind   GatewayErrorKind
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment gateway %s: %s", e.Kind, e.Reason)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func IsDecline(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == GatewayDecline
}

func IsTransient(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == GatewayTransient
}
