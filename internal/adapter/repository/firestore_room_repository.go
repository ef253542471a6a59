package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"tradepost/internal/domain/entity"
	"tradepost/internal/domain/repository"
)

type firestoreRoomRepository struct {
	client *firestore.Client
}

func NewFirestoreRoomRepository(client *firestore.Client) repository.ChatRoomRepository {
	return &firestoreRoomRepository{
		client: client,
	}
}

// tripleID derives the document ID from the room's identity. Using the triple
// itself as the key makes the uniqueness constraint a property of the store:
// two concurrent first-contact requests race on the same document and exactly
// one Create wins, regardless of how many server processes are involved.
func tripleID(listingID, buyerID, sellerID string) string {
	return fmt.Sprintf("%s_%s_%s", listingID, buyerID, sellerID)
}

func (r *firestoreRoomRepository) Create(ctx context.Context, room *entity.ChatRoom) error {
	room.ID = tripleID(room.ListingID, room.BuyerID, room.SellerID)

	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now

	// Create (not Set) so a lost race surfaces as AlreadyExists -> CONFLICT.
	if _, err := r.client.Collection(roomCollection).Doc(room.ID).Create(ctx, room); err != nil {
		return mapFirestoreError("Chat room", err)
	}

	return nil
}

func (r *firestoreRoomRepository) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	doc, err := r.client.Collection(roomCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("Chat room", err)
	}

	var room entity.ChatRoom
	if err := doc.DataTo(&room); err != nil {
		return nil, mapFirestoreError("Chat room", err)
	}
	room.ID = doc.Ref.ID

	return &room, nil
}

func (r *firestoreRoomRepository) GetByTriple(ctx context.Context, listingID, buyerID, sellerID string) (*entity.ChatRoom, error) {
	return r.GetByID(ctx, tripleID(listingID, buyerID, sellerID))
}

func (r *firestoreRoomRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.ChatRoom, int64, error) {
	// A member is either the buyer or the seller; two queries, merged.
	var rooms []*entity.ChatRoom
	for _, field := range []string{"buyerId", "sellerId"} {
		docs, err := r.client.Collection(roomCollection).Where(field, "==", userID).Documents(ctx).GetAll()
		if err != nil {
			return nil, 0, mapFirestoreError("Chat rooms", err)
		}
		for _, doc := range docs {
			var room entity.ChatRoom
			if err := doc.DataTo(&room); err != nil {
				continue
			}
			room.ID = doc.Ref.ID
			rooms = append(rooms, &room)
		}
	}

	// Most recently active first.
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})

	total := int64(len(rooms))

	start := offset
	if start > len(rooms) {
		start = len(rooms)
	}
	end := len(rooms)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return rooms[start:end], total, nil
}

func (r *firestoreRoomRepository) Touch(ctx context.Context, roomID string, at time.Time) error {
	_, err := r.client.Collection(roomCollection).Doc(roomID).Update(ctx, []firestore.Update{
		{Path: "updatedAt", Value: at},
	})
	if err != nil {
		return mapFirestoreError("Chat room", err)
	}
	return nil
}

func (r *firestoreRoomRepository) SetBlocked(ctx context.Context, roomID string, blocked bool, blockedBy string) error {
	_, err := r.client.Collection(roomCollection).Doc(roomID).Update(ctx, []firestore.Update{
		{Path: "isBlocked", Value: blocked},
		{Path: "blockedBy", Value: blockedBy},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return mapFirestoreError("Chat room", err)
	}
	return nil
}
