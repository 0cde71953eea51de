package http

import (
	"log/slog"
	"net/http"
)

type PaymentHandler struct {
	payments PaymentService
	log      *slog.Logger
}

func NewPaymentHandler(payments PaymentService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

type PaymentRequestDTO struct {
	OrderID            string `json:"orderId"`
	PaymentMethodNonce string `json:"paymentMethodNonce"`
}

type ValidateCardRequestDTO struct {
	CardNumber string `json:"cardNumber"`
}

// GET /api/user/braintree/token
func (h *PaymentHandler) ClientToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	token, err := h.payments.ClientToken(r.Context(), userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"clientToken": token})
}

// POST /api/user/braintree/payment
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req PaymentRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_input", "orderId is required")
		return
	}

	o, err := h.payments.Pay(r.Context(), userID, req.OrderID, req.PaymentMethodNonce)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// POST /api/user/braintree/validate-card
func (h *PaymentHandler) ValidateCard(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}
	var req ValidateCardRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	info, err := h.payments.ValidateCard(req.CardNumber)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}
