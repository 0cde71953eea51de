package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	orders OrderService
	log    *slog.Logger
}

func NewOrdersHandler(orders OrderService, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, log: log}
}

type CreateOrderRequestDTO struct {
	ShippingAddress domain.Address `json:"shippingAddress"`
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"orderStatus"`
}

// POST /api/user/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	o, err := h.orders.Create(r.Context(), userID, service.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// GET /api/user/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.List(r.Context(), userID, queryInt(r, "page", 1), queryInt(r, "limit", 50))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/user/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GET /api/user/orders/{id}/track
func (h *OrdersHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	tr, err := h.orders.Track(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, tr)
}

// POST /api/user/orders/{id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GET /api/user/orders/{id}/payments
func (h *OrdersHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	txs, err := h.orders.Payments(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// GET /api/user/orders/{id}/invoice
func (h *OrdersHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSession(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")
	pdf, err := h.orders.Invoice(r.Context(), userID, orderID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+orderID+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.log.WarnContext(r.Context(), "failed to write invoice", "order_id", orderID, "error", err)
	}
}

// GET /api/admin/orders?status=
func (h *OrdersHandler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	orders, err := h.orders.ListAll(r.Context(), status, queryInt(r, "page", 1), queryInt(r, "limit", 50))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// PUT /api/admin/orders/{id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
