package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// InitialBackoff defaults to 200ms.
	InitialBackoff time.Duration
	// RetryBudget caps one logical call, retries included. Zero means
	// (MaxRetries+1) * (Timeout + max backoff).
	RetryBudget time.Duration
}

type SaleRequest struct {
	OrderID        string
	Amount         domain.Money
	Nonce          string
	IdempotencyKey string
	// Capture submits for settlement right away; otherwise the sale is only authorized.
	Capture bool
}

// Client talks to the card processor over JSON/HTTP. Transport failures and
// 5xx answers are retried with the same idempotency key; declines are not.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxTries   uint
	backoff    time.Duration
	budget     time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	log        *slog.Logger
}

type response struct {
	status int
	body   []byte
}

type saleBody struct {
	Amount              string `json:"amount"`
	PaymentMethodNonce  string `json:"paymentMethodNonce"`
	OrderID             string `json:"orderId"`
	SubmitForSettlement bool   `json:"submitForSettlement"`
}

type transactionBody struct {
	ID                    string `json:"id"`
	Status                string `json:"status"`
	PaymentInstrumentType string `json:"paymentInstrumentType"`
	ProcessorResponseText string `json:"processorResponseText"`
}

type resultBody struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	ClientToken string           `json:"clientToken"`
	Transaction *transactionBody `json:"transaction"`
}

var errServerSide = errors.New("payment processor unavailable")

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}

	maxTries := uint(cfg.MaxRetries) + 1
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = time.Duration(maxTries) * (cfg.Timeout + 5*cfg.InitialBackoff)
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		maxTries: maxTries,
		backoff:  cfg.InitialBackoff,
		budget:   cfg.RetryBudget,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

func (c *Client) ClientToken(ctx context.Context, customerID string) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, "/client_token", "", map[string]string{"customerId": customerID})
	if err != nil {
		return "", err
	}
	var body resultBody
	if err := json.Unmarshal(resp.body, &body); err != nil || body.ClientToken == "" {
		return "", &domain.GatewayError{Kind: domain.GatewayTransient, Reason: "malformed client token response", Err: err}
	}
	return body.ClientToken, nil
}

func (c *Client) Sale(ctx context.Context, req SaleRequest) (*domain.PaymentResult, error) {
	resp, err := c.call(ctx, http.MethodPost, "/transactions/sale", req.IdempotencyKey, saleBody{
		Amount:              req.Amount.String(),
		PaymentMethodNonce:  req.Nonce,
		OrderID:             req.OrderID,
		SubmitForSettlement: req.Capture,
	})
	if err != nil {
		return nil, err
	}

	var body resultBody
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, &domain.GatewayError{Kind: domain.GatewayTransient, Reason: "malformed sale response", Err: err}
	}

	if !body.Success || body.Transaction == nil {
		reason := body.Message
		if body.Transaction != nil && body.Transaction.ProcessorResponseText != "" {
			reason = body.Transaction.ProcessorResponseText
		}
		return nil, &domain.GatewayError{Kind: domain.GatewayDecline, Reason: reason}
	}

	status, err := mapTransactionStatus(body.Transaction.Status)
	if err != nil {
		return nil, err
	}
	return &domain.PaymentResult{
		TransactionID: body.Transaction.ID,
		Status:        status,
		Method:        body.Transaction.PaymentInstrumentType,
	}, nil
}

// Void releases an authorization, or refunds when the money was already captured.
func (c *Client) Void(ctx context.Context, transactionID string, settled bool) error {
	action := "void"
	if settled {
		action = "refund"
	}
	resp, err := c.call(ctx, http.MethodPost, "/transactions/"+transactionID+"/"+action, transactionID+"-"+action, nil)
	if err != nil {
		return err
	}
	var body resultBody
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return &domain.GatewayError{Kind: domain.GatewayTransient, Reason: "malformed " + action + " response", Err: err}
	}
	if !body.Success {
		return &domain.GatewayError{Kind: domain.GatewayDecline, Reason: body.Message}
	}
	return nil
}

func mapTransactionStatus(s string) (domain.PaymentStatus, error) {
	switch s {
	case "authorized":
		return domain.PaymentStatusAuthorized, nil
	case "submitted_for_settlement", "settling", "settled":
		return domain.PaymentStatusSettled, nil
	case "processor_declined", "gateway_rejected", "failed":
		return "", &domain.GatewayError{Kind: domain.GatewayDecline, Reason: s}
	}
	return "", &domain.GatewayError{Kind: domain.GatewayTransient, Reason: "unknown transaction status " + s}
}

// call runs one logical request: retried with backoff while the processor
// looks unavailable, short-circuited while the breaker is open.
func (c *Client) call(ctx context.Context, method, path, idempotencyKey string, payload any) (*response, error) {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal gateway request: %w", err)
		}
	}

	// Nothing, including the last retry, outlives the budget.
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.MaxInterval = 5 * c.backoff

	op := func() (*response, error) {
		resp, err := c.breaker.Execute(func() (*response, error) {
			return c.do(ctx, method, path, idempotencyKey, raw)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backoff.Permanent(err)
		}
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithMaxElapsedTime(c.budget),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.WarnContext(ctx, "payment gateway call failed, retrying", "path", path, "error", err, "next", next)
		}),
	)
	if err != nil {
		return nil, &domain.GatewayError{Kind: domain.GatewayTransient, Reason: "gateway unavailable", Err: err}
	}

	switch {
	case resp.status == http.StatusPaymentRequired || resp.status == http.StatusUnprocessableEntity:
		// declines come back either as 200 with success=false or as these codes
		return resp, nil
	case resp.status >= 400:
		return nil, &domain.GatewayError{Kind: domain.GatewayTransient, Reason: fmt.Sprintf("gateway rejected request with status %d", resp.status)}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, raw []byte) (*response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if raw != nil {
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", errServerSide, resp.StatusCode)
	}
	return &response{status: resp.StatusCode, body: data}, nil
}
