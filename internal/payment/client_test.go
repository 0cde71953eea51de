package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	mu   sync.Mutex
	keys []string
	body []saleBody
}

func (r *recorded) add(key string, b saleBody) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.body = append(r.body, b)
}

func newTestClient(url string, retries int) *Client {
	return NewClient(Config{
		BaseURL:        url,
		APIKey:         "test-key",
		Timeout:        time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
	}, logger.Discard())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSale_Settled(t *testing.T) {
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/sale", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var b saleBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		rec.add(r.Header.Get("Idempotency-Key"), b)
		writeJSON(w, http.StatusOK, resultBody{Success: true, Transaction: &transactionBody{
			ID: "txn-1", Status: "submitted_for_settlement", PaymentInstrumentType: "credit_card",
		}})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 2).Sale(context.Background(), SaleRequest{
		OrderID: "o1", Amount: 1230, Nonce: "nonce", IdempotencyKey: "o1-1", Capture: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSettled, res.Status)
	assert.Equal(t, "txn-1", res.TransactionID)
	assert.Equal(t, "credit_card", res.Method)

	require.Len(t, rec.body, 1)
	assert.Equal(t, "12.30", rec.body[0].Amount)
	assert.True(t, rec.body[0].SubmitForSettlement)
	assert.Equal(t, "o1-1", rec.keys[0])
}

func TestSale_AuthorizedOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resultBody{Success: true, Transaction: &transactionBody{ID: "txn-2", Status: "authorized"}})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 0).Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAuthorized, res.Status)
}

func TestSale_DeclineIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, resultBody{Success: false, Message: "Do Not Honor",
			Transaction: &transactionBody{Status: "processor_declined", ProcessorResponseText: "Insufficient Funds"}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n"})
	require.Error(t, err)
	assert.True(t, domain.IsDecline(err))
	assert.ErrorContains(t, err, "Insufficient Funds")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSale_UnprocessableIsDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, resultBody{Success: false, Message: "gateway rejected"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n"})
	assert.True(t, domain.IsDecline(err))
}

func TestSale_RetriesServerErrorsWithSameKey(t *testing.T) {
	rec := &recorded{}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b saleBody
		_ = json.NewDecoder(r.Body).Decode(&b)
		rec.add(r.Header.Get("Idempotency-Key"), b)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, resultBody{Success: true, Transaction: &transactionBody{ID: "txn-3", Status: "settled"}})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 3).Sale(context.Background(), SaleRequest{
		OrderID: "o1", Amount: 100, Nonce: "n", IdempotencyKey: "o1-2", Capture: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "txn-3", res.TransactionID)
	assert.Equal(t, []string{"o1-2", "o1-2", "o1-2"}, rec.keys)
}

func TestSale_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n"})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSale_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	for i := 0; i < 5; i++ {
		_, err := client.Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n"})
		assert.True(t, domain.IsTransient(err))
	}
	assert.Equal(t, int32(5), calls.Load())

	_, err := client.Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n"})
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, int32(5), calls.Load(), "open breaker must not reach the processor")
}

func TestSale_ClientErrorIsTransientNotDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n"})
	assert.True(t, domain.IsTransient(err))
	assert.False(t, domain.IsDecline(err))
}

func TestVoidAndRefund(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		writeJSON(w, http.StatusOK, resultBody{Success: true})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	require.NoError(t, client.Void(context.Background(), "txn-1", false))
	require.NoError(t, client.Void(context.Background(), "txn-2", true))
	assert.Equal(t, []string{"/transactions/txn-1/void", "/transactions/txn-2/refund"}, paths)
}

func TestClientToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client_token", r.URL.Path)
		writeJSON(w, http.StatusOK, resultBody{Success: true, ClientToken: "tok-abc"})
	}))
	defer srv.Close()

	token, err := newTestClient(srv.URL, 0).ClientToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
}

func TestSale_RetryBudgetBoundsTheCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:        srv.URL,
		Timeout:        time.Second,
		MaxRetries:     50,
		InitialBackoff: 10 * time.Millisecond,
		RetryBudget:    150 * time.Millisecond,
	}, logger.Discard())

	start := time.Now()
	_, err := client.Sale(context.Background(), SaleRequest{OrderID: "o1", Amount: 100, Nonce: "n", IdempotencyKey: "o1-1"})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	// five slow failures would take well over 500ms before the breaker opens
	assert.Less(t, elapsed, 400*time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(2))
}
