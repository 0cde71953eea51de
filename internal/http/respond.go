package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
)

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, Envelope{Success: true, Message: message})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, Envelope{Success: false, Code: code, Message: message})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads the request body into v. Unknown fields are ignored.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("request body is empty")
		}
		return domain.Invalid("invalid JSON body")
	}
	return nil
}

// handleError maps service errors to HTTP statuses. Processor messages and
// internal failures are never passed through to the client.
func handleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case domain.IsDecline(err):
		respondError(w, http.StatusPaymentRequired, "payment_declined", "payment was declined, please try another payment method")
	case domain.IsTransient(err):
		respondError(w, http.StatusServiceUnavailable, "payment_unavailable", "payment service is unavailable, please try again")
	case errors.Is(err, auth.ErrOTPTooManyAttempts):
		respondError(w, http.StatusTooManyRequests, "too_many_attempts", "too many attempts, request a new code later")
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input", clientMessage(err, domain.ErrInvalidInput))
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", clientMessage(err, domain.ErrUnauthorized))
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", clientMessage(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", "not enough stock for the requested quantity")
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", clientMessage(err, domain.ErrConflict))
	default:
		log.ErrorContext(r.Context(), "request failed",
			"request_id", getRequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		respondError(w, http.StatusInternalServerError, "internal", "something went wrong, please try again")
	}
}

// clientMessage drops the sentinel text: "invalid input: quantity must be..."
// becomes "quantity must be...".
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return strings.TrimSuffix(msg, ": "+sentinel.Error())
}
