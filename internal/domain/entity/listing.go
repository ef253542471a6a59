package entity

import "time"

const (
	ListingStatusActive  = "active"
	ListingStatusDeleted = "deleted"
)

// Listing is owned by the listings service; the chat core only reads it to
// resolve the seller and to embed a summary in room payloads.
type Listing struct {
	ID        string    `json:"id" firestore:"id"`
	Title     string    `json:"title" firestore:"title"`
	Price     float64   `json:"price" firestore:"price"`
	SellerID  string    `json:"seller_id" firestore:"sellerId"`
	Status    string    `json:"status" firestore:"status"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}

// ListingSummary is the slice of listing data embedded in chat responses.
type ListingSummary struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

func (l *Listing) Summary() *ListingSummary {
	return &ListingSummary{
		ID:    l.ID,
		Title: l.Title,
		Price: l.Price,
	}
}
