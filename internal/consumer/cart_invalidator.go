package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartInvalidator drops the cached cart of a user once their order is
// created, so a replica that served the old cart does not keep serving it.
type CartInvalidator struct {
	cache  cache.CartCache
	reader messageReader
	log    *slog.Logger
}

func NewCartInvalidator(c cache.CartCache, log *slog.Logger, topic string, brokers ...string) *CartInvalidator {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "storefront-cart-invalidator",
		MaxBytes: 10e6, // 10MB
	})
	return &CartInvalidator{cache: c, reader: reader, log: log}
}

func (c *CartInvalidator) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *CartInvalidator) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

func (c *CartInvalidator) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.ErrorContext(ctx, "error reading message", "error", err)
		return
	}
	c.handle(ctx, m)
}

func (c *CartInvalidator) handle(ctx context.Context, m kafka.Message) {
	if eventType(m) != domain.EventOrderCreated {
		return
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.ErrorContext(ctx, "error parsing order event", "error", err)
		return
	}
	if event.UserID == "" {
		c.log.WarnContext(ctx, "order event without user_id", "order_id", event.OrderID)
		return
	}

	if err := c.cache.Delete(ctx, event.UserID); err != nil {
		c.log.ErrorContext(ctx, "failed to invalidate cart cache", "user_id", event.UserID, "error", err)
		return
	}
	c.log.DebugContext(ctx, "cart cache invalidated", "user_id", event.UserID, "order_id", event.OrderID)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
