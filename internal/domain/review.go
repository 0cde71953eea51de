package domain

import (
	"strings"
	"time"
)

type Review struct {
	ID               string    `bson:"_id" json:"id"`
	UserID           string    `bson:"user_id" json:"userId"`
	UserName         string    `bson:"user_name,omitempty" json:"userName,omitempty"`
	ProductID        string    `bson:"product_id" json:"productId"`
	Rating           int       `bson:"rating" json:"rating"`
	Title            string    `bson:"title" json:"title"`
	Comment          string    `bson:"comment" json:"comment"`
	HelpfulVotes     int       `bson:"helpful_votes" json:"helpfulVotes"`
	Voters           []string  `bson:"voters" json:"-"`
	VerifiedPurchase bool      `bson:"verified_purchase" json:"verifiedPurchase"`
	CreatedAt        time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updatedAt"`
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

func (in *ReviewInput) Validate() error {
	if in.Rating < 1 || in.Rating > 5 {
		return Invalid("rating must be between 1 and 5")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Comment = strings.TrimSpace(in.Comment)
	if in.Title == "" {
		return Invalid("title is required")
	}
	if in.Comment == "" {
		return Invalid("comment is required")
	}
	return nil
}

type ReviewSummary struct {
	ProductID     string  `bson:"_id" json:"productId"`
	AverageRating float64 `bson:"average_rating" json:"averageRating"`
	TotalCount    int     `bson:"total_count" json:"totalCount"`
}
