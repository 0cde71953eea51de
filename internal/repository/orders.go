package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &orderRepository{collection: db.Collection("orders")}
}

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "idempotency_key": key})
}

func (r *orderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var o domain.Order
	err := r.collection.FindOne(ctx, filter).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

func (r *orderRepository) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "order_date", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := []domain.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) HasDeliveredProduct(ctx context.Context, userID, productID string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{
		"user_id":          userID,
		"status":           domain.OrderStatusDelivered,
		"items.product_id": productID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count delivered orders: %w", err)
	}
	return n > 0, nil
}

func (r *orderRepository) Save(ctx context.Context, o *domain.Order, prevStatus domain.OrderStatus, prevPayment domain.PaymentStatus) error {
	o.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"transaction_id": o.TransactionID,
		"updated_at":     o.UpdatedAt,
	}
	if o.CancelledAt != nil {
		set["cancelled_at"] = o.CancelledAt
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": o.ID, "status": prevStatus, "payment_status": prevPayment},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.Get(ctx, o.ID); err != nil {
			return err
		}
		return ErrStaleOrder
	}
	return nil
}

func (r *orderRepository) BeginPaymentAttempt(ctx context.Context, id string) (int, error) {
	for range 3 {
		var o domain.Order
		err := r.collection.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "payment_attempt_open": bson.M{"$ne": true}},
			bson.M{
				"$inc": bson.M{"payment_attempts": 1},
				"$set": bson.M{"payment_attempt_open": true},
			},
			options.FindOneAndUpdate().
				SetReturnDocument(options.After).
				SetProjection(bson.M{"payment_attempts": 1}),
		).Decode(&o)
		if err == nil {
			return o.PaymentAttempts, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("failed to start payment attempt: %w", err)
		}

		// missing order, or an attempt is still open
		cur, err := r.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		if cur.PaymentAttemptOpen {
			return cur.PaymentAttempts, nil
		}
		// closed between the two reads; try again
	}
	return 0, ErrStaleOrder
}

func (r *orderRepository) ClosePaymentAttempt(ctx context.Context, id string, attempt int) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "payment_attempts": attempt},
		bson.M{"$set": bson.M{"payment_attempt_open": false}},
	)
	if err != nil {
		return fmt.Errorf("failed to close payment attempt: %w", err)
	}
	return nil
}
