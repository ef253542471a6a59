package repository

import (
	"context"
	"time"

	"tradepost/internal/domain/entity"
)

// ChatRoomRepository persists rooms. Uniqueness of the (listing, buyer,
// seller) triple is the repository's responsibility: Create must fail with a
// CONFLICT error when the triple already exists, so callers can re-read the
// winning row instead of creating a duplicate.
type ChatRoomRepository interface {
	Create(ctx context.Context, room *entity.ChatRoom) error
	GetByID(ctx context.Context, id string) (*entity.ChatRoom, error)
	GetByTriple(ctx context.Context, listingID, buyerID, sellerID string) (*entity.ChatRoom, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.ChatRoom, int64, error)
	Touch(ctx context.Context, roomID string, at time.Time) error
	SetBlocked(ctx context.Context, roomID string, blocked bool, blockedBy string) error
}

// ChatMessageRepository persists messages. The store assigns the ordering key
// on insert; readers always see messages in that order.
type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) (*entity.ChatMessage, error)
	GetByID(ctx context.Context, id string) (*entity.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID string, limit, offset int, before string) ([]*entity.ChatMessage, int64, error)
	MarkRoomRead(ctx context.Context, roomID, readerID string, at time.Time) (int, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	CountUnread(ctx context.Context, roomID, userID string) (int64, error)
	LastMessage(ctx context.Context, roomID string) (*entity.ChatMessage, error)
}
