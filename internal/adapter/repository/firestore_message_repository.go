package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"tradepost/internal/domain/entity"
	"tradepost/internal/domain/repository"
	"tradepost/pkg/errors"
	"tradepost/pkg/logger"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.ChatMessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

// Create inserts the message and re-reads it so the caller gets the
// server-assigned createdAt, the canonical ordering key within the room.
func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.ChatMessage) (*entity.ChatMessage, error) {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	docRef := r.client.Collection(messageCollection).Doc(message.ID)
	if _, err := docRef.Create(ctx, message); err != nil {
		return nil, mapFirestoreError("Chat message", err)
	}

	doc, err := docRef.Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("Chat message", err)
	}

	var persisted entity.ChatMessage
	if err := doc.DataTo(&persisted); err != nil {
		return nil, mapFirestoreError("Chat message", err)
	}
	persisted.ID = doc.Ref.ID

	return &persisted, nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.ChatMessage, error) {
	doc, err := r.client.Collection(messageCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("Chat message", err)
	}

	var message entity.ChatMessage
	if err := doc.DataTo(&message); err != nil {
		return nil, mapFirestoreError("Chat message", err)
	}
	message.ID = doc.Ref.ID

	return &message, nil
}

func (r *firestoreMessageRepository) ListByRoom(ctx context.Context, roomID string, limit, offset int, before string) ([]*entity.ChatMessage, int64, error) {
	query := r.client.Collection(messageCollection).
		Where("roomId", "==", roomID).
		Where("isDeleted", "==", false).
		OrderBy("createdAt", firestore.Asc)

	if before != "" {
		cursor, err := r.GetByID(ctx, before)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("createdAt", "<", cursor.CreatedAt)
	}

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, mapFirestoreError("Chat messages", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var messages []*entity.ChatMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, mapFirestoreError("Chat messages", err)
		}

		var message entity.ChatMessage
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message %s in room %s: %v", doc.Ref.ID, roomID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, total, nil
}

// MarkRoomRead flips every unread message not sent by readerID. The
// transition is monotonic: already-read messages are left untouched, so
// repeated calls converge on the same state.
func (r *firestoreMessageRepository) MarkRoomRead(ctx context.Context, roomID, readerID string, at time.Time) (int, error) {
	docs, err := r.client.Collection(messageCollection).
		Where("roomId", "==", roomID).
		Where("isRead", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, mapFirestoreError("Chat messages", err)
	}

	bw := r.client.BulkWriter(ctx)
	updated := 0
	for _, doc := range docs {
		var message entity.ChatMessage
		if err := doc.DataTo(&message); err != nil {
			continue
		}
		if message.SenderID == readerID {
			continue
		}

		_, err := bw.Update(doc.Ref, []firestore.Update{
			{Path: "isRead", Value: true},
			{Path: "readAt", Value: at},
		})
		if err != nil {
			bw.End()
			return 0, mapFirestoreError("Chat message", err)
		}
		updated++
	}
	bw.End()

	return updated, nil
}

func (r *firestoreMessageRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	_, err := r.client.Collection(messageCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "isDeleted", Value: true},
		{Path: "deletedAt", Value: at},
	})
	if err != nil {
		return mapFirestoreError("Chat message", err)
	}
	return nil
}

// CountUnread counts the other party's unread messages. Soft-deleted rows are
// excluded like in every other read path; a sender deleting an unread message
// must not leave the recipient's badge inflated.
func (r *firestoreMessageRepository) CountUnread(ctx context.Context, roomID, userID string) (int64, error) {
	docs, err := r.client.Collection(messageCollection).
		Where("roomId", "==", roomID).
		Where("isRead", "==", false).
		Where("isDeleted", "==", false).
		Select("senderId").
		Documents(ctx).GetAll()
	if err != nil {
		return 0, mapFirestoreError("Chat messages", err)
	}

	var count int64
	for _, doc := range docs {
		var message entity.ChatMessage
		if err := doc.DataTo(&message); err != nil {
			continue
		}
		if message.SenderID != userID {
			count++
		}
	}

	return count, nil
}

func (r *firestoreMessageRepository) LastMessage(ctx context.Context, roomID string) (*entity.ChatMessage, error) {
	iter := r.client.Collection(messageCollection).
		Where("roomId", "==", roomID).
		Where("isDeleted", "==", false).
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, errors.NotFound("Chat message", nil)
	}
	if err != nil {
		return nil, mapFirestoreError("Chat message", err)
	}

	var message entity.ChatMessage
	if err := doc.DataTo(&message); err != nil {
		return nil, mapFirestoreError("Chat message", err)
	}
	message.ID = doc.Ref.ID

	return &message, nil
}
