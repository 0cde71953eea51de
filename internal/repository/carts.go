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

const addItemAttempts = 3

type cartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) CartRepository {
	return &cartRepository{
		collection: db.Collection("carts"),
	}
}

func (m *cartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// AddItem bumps the quantity of an existing line for the same product with
// $inc, or pushes a new line (creating the cart if needed). Both branches are
// single-document atomic updates, so concurrent adds sum up. The $inc only
// matches while the line has room for the added quantity, so racing adds
// cannot push a line past limit.
func (m *cartRepository) AddItem(ctx context.Context, userID string, item domain.CartItem, limit int) (*domain.Cart, error) {
	if item.Quantity > limit {
		return nil, ErrLineLimit
	}
	now := time.Now().UTC()
	item.AddedAt = now
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	for attempt := 0; attempt < addItemAttempts; attempt++ {
		var cart domain.Cart
		err := m.collection.FindOneAndUpdate(ctx,
			bson.M{
				"user_id": userID,
				"items": bson.M{"$elemMatch": bson.M{
					"product_id": item.ProductID,
					"quantity":   bson.M{"$lte": limit - item.Quantity},
				}},
			},
			bson.M{
				"$inc": bson.M{"items.$.quantity": item.Quantity},
				"$set": bson.M{"updated_at": now},
			},
			after,
		).Decode(&cart)
		if err == nil {
			return &cart, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to increment item: %w", err)
		}

		n, err := m.collection.CountDocuments(ctx,
			bson.M{"user_id": userID, "items.product_id": item.ProductID},
			options.Count().SetLimit(1),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to check cart line: %w", err)
		}
		if n > 0 {
			return nil, ErrLineLimit
		}

		err = m.collection.FindOneAndUpdate(ctx,
			bson.M{"user_id": userID, "items.product_id": bson.M{"$ne": item.ProductID}},
			bson.M{
				"$push":        bson.M{"items": item},
				"$set":         bson.M{"updated_at": now},
				"$setOnInsert": bson.M{"created_at": now},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(true),
		).Decode(&cart)
		if err == nil {
			return &cart, nil
		}
		// Someone added the same product in between: the upsert collided
		// with the unique user_id index. Go back to the $inc branch.
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		return nil, fmt.Errorf("failed to add new item: %w", err)
	}

	return nil, fmt.Errorf("failed to add item after %d attempts: %w", addItemAttempts, domain.ErrConflict)
}

func (m *cartRepository) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	filter := bson.M{
		"user_id":       userID,
		"items.item_id": itemID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now().UTC(),
		},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.item_id": itemID},
			},
		})

	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item quantity: %w", err)
	}
	return &cart, nil
}

// RemoveItem pulls the line if present. Pulling an absent item still returns
// the current cart.
func (m *cartRepository) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"item_id": itemID},
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove item: %w", err)
	}

	return &cart, nil
}

func (m *cartRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}
