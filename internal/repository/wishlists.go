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

type wishlistRepository struct {
	collection *mongo.Collection
}

func NewWishlistRepository(db *mongo.Database) WishlistRepository {
	return &wishlistRepository{collection: db.Collection("wishlists")}
}

func (r *wishlistRepository) Get(ctx context.Context, userID string) (*domain.Wishlist, error) {
	var w domain.Wishlist
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrWishlistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist: %w", err)
	}
	return &w, nil
}

// Add creates the wishlist on first use.
func (r *wishlistRepository) Add(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	var w domain.Wishlist
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$addToSet": bson.M{"product_ids": productID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&w)
	if err != nil {
		return nil, fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return &w, nil
}

func (r *wishlistRepository) Remove(ctx context.Context, userID, productID string) (*domain.Wishlist, error) {
	var w domain.Wishlist
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$pull": bson.M{"product_ids": productID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrWishlistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return &w, nil
}

func (r *wishlistRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"product_ids": []string{}, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear wishlist: %w", err)
	}
	return nil
}
