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

type reviewRepository struct {
	collection *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) ReviewRepository {
	return &reviewRepository{collection: db.Collection("reviews")}
}

func (r *reviewRepository) Create(ctx context.Context, rev *domain.Review) error {
	now := time.Now().UTC()
	rev.CreatedAt = now
	rev.UpdatedAt = now
	if rev.Voters == nil {
		rev.Voters = []string{}
	}
	if _, err := r.collection.InsertOne(ctx, rev); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *reviewRepository) Get(ctx context.Context, id string) (*domain.Review, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *reviewRepository) GetByUserAndProduct(ctx context.Context, userID, productID string) (*domain.Review, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "product_id": productID})
}

func (r *reviewRepository) findOne(ctx context.Context, filter bson.M) (*domain.Review, error) {
	var rev domain.Review
	err := r.collection.FindOne(ctx, filter).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &rev, nil
}

func (r *reviewRepository) Update(ctx context.Context, id string, in domain.ReviewInput) (*domain.Review, error) {
	var rev domain.Review
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"rating":     in.Rating,
			"title":      in.Title,
			"comment":    in.Comment,
			"updated_at": time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	return &rev, nil
}

func (r *reviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *reviewRepository) ListByProduct(ctx context.Context, productID string, page, limit int) ([]domain.Review, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	filter := bson.M{"product_id": productID}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "helpful_votes", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	reviews := []domain.Review{}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, 0, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, total, nil
}

// Vote counts a helpful vote once per user. A repeated vote leaves the
// review untouched and returns it as is.
func (r *reviewRepository) Vote(ctx context.Context, reviewID, userID string) (*domain.Review, error) {
	var rev domain.Review
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": reviewID, "voters": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"voters": userID},
			"$inc":  bson.M{"helpful_votes": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.Get(ctx, reviewID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to vote on review: %w", err)
	}
	return &rev, nil
}

func (r *reviewRepository) Summary(ctx context.Context, productID string) (domain.ReviewSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product_id": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":            "$product_id",
			"average_rating": bson.M{"$avg": "$rating"},
			"total_count":    bson.M{"$sum": 1},
		}}},
	}
	cur, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.ReviewSummary{}, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	var out []domain.ReviewSummary
	if err := cur.All(ctx, &out); err != nil {
		return domain.ReviewSummary{}, fmt.Errorf("failed to decode review summary: %w", err)
	}
	if len(out) == 0 {
		return domain.ReviewSummary{ProductID: productID}, nil
	}
	return out[0], nil
}
