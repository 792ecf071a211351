package review

import "time"

type Review struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	UserID           string    `json:"user_id"`
	Rating           int       `json:"rating"`
	Body             string    `json:"body,omitempty"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateReviewRequest payload for posting a review.
// swagger:model CreateReviewRequest
type CreateReviewRequest struct {
	Rating int    `json:"rating" example:"5"`
	Body   string `json:"body"   example:"Runs true to size, lovely fabric."`
}
