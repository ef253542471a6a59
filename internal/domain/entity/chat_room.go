package entity

import "time"

// ChatRoom is the conversation context for one (listing, buyer, seller)
// triple. Rooms are created lazily on first contact and never hard-deleted;
// blocking takes the place of deletion.
type ChatRoom struct {
	ID        string    `json:"id" firestore:"id"`
	ListingID string    `json:"listing_id" firestore:"listingId"`
	BuyerID   string    `json:"buyer_id" firestore:"buyerId"`
	SellerID  string    `json:"seller_id" firestore:"sellerId"`
	IsBlocked bool      `json:"is_blocked" firestore:"isBlocked"`
	BlockedBy string    `json:"blocked_by,omitempty" firestore:"blockedBy,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (r *ChatRoom) IsMember(userID string) bool {
	return userID == r.BuyerID || userID == r.SellerID
}

// OtherMember returns the counterparty of userID, or "" for non-members.
func (r *ChatRoom) OtherMember(userID string) string {
	switch userID {
	case r.BuyerID:
		return r.SellerID
	case r.SellerID:
		return r.BuyerID
	}
	return ""
}
