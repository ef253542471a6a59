package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"tradepost/internal/domain/entity"
	"tradepost/internal/domain/repository"
	"tradepost/internal/infrastructure/moderation"
	"tradepost/internal/infrastructure/ratelimit"
	"tradepost/pkg/errors"
	"tradepost/pkg/logger"
	"tradepost/pkg/utils"
)

const maxMessageLength = 1000

// MessageUseCase is the message pipeline: validate, sanitize, persist,
// broadcast, notify. Persistence is the commit point; everything after it is
// best-effort and never fails the send.
type MessageUseCase struct {
	roomRepo    repository.ChatRoomRepository
	messageRepo repository.ChatMessageRepository
	userRepo    repository.UserRepository
	filter      *moderation.Filter
	broadcaster Broadcaster
	dispatcher  *NotificationDispatcher
	rateLimiter *ratelimit.RateLimiter
	opTimeout   time.Duration

	// roomLocks serializes persist-then-broadcast per room inside this
	// process so fan-out follows persistence order. Ordering across
	// processes belongs to the storage layer's insertion key.
	roomLocks sync.Map
}

func NewMessageUseCase(
	roomRepo repository.ChatRoomRepository,
	messageRepo repository.ChatMessageRepository,
	userRepo repository.UserRepository,
	filter *moderation.Filter,
	broadcaster Broadcaster,
	dispatcher *NotificationDispatcher,
	rateLimiter *ratelimit.RateLimiter,
	opTimeout time.Duration,
) *MessageUseCase {
	return &MessageUseCase{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		filter:      filter,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		rateLimiter: rateLimiter,
		opTimeout:   opTimeout,
	}
}

func (uc *MessageUseCase) roomLock(roomID string) *sync.Mutex {
	lock, _ := uc.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// SendMessage runs the full pipeline for one message.
func (uc *MessageUseCase) SendMessage(ctx context.Context, roomID, senderID, content string) (*entity.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsMember(senderID) {
		return nil, errors.Forbidden("User is not a member of this chat room", nil)
	}
	if room.IsBlocked {
		return nil, errors.RoomBlocked("Chat is blocked")
	}

	if allowed, _ := uc.rateLimiter.Allow(senderID, "send_message"); !allowed {
		return nil, errors.TooManyRequests("You are sending messages too quickly, please slow down")
	}

	if err := uc.validateContent(content); err != nil {
		return nil, err
	}

	message := &entity.ChatMessage{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  uc.filter.Sanitize(content),
	}

	lock := uc.roomLock(roomID)
	lock.Lock()
	persisted, err := uc.messageRepo.Create(ctx, message)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	uc.broadcastNewMessage(persisted)
	lock.Unlock()

	// The message is durable from here on; secondary effects only log.
	if err := uc.roomRepo.Touch(ctx, roomID, persisted.CreatedAt); err != nil {
		logger.Warn("Failed to touch room %s after send: %v", roomID, err)
	}
	if err := uc.userRepo.UpdateLastActivity(ctx, senderID, persisted.CreatedAt); err != nil {
		logger.Warn("Failed to update last activity for %s: %v", senderID, err)
	}

	uc.dispatcher.Enqueue(persisted, room)

	return persisted, nil
}

func (uc *MessageUseCase) validateContent(content string) error {
	if moderation.IsBlank(content) {
		return errors.BadRequest("Message cannot be empty", nil)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return errors.BadRequest("Message exceeds the 1000 character limit", nil)
	}
	if uc.filter.ContainsBlockedFile(content) {
		return errors.FileNotAllowed("Images and files are not allowed in chat")
	}
	if uc.filter.ContainsProfanity(content) {
		return errors.InappropriateLanguage("Message contains inappropriate language")
	}
	return nil
}

func (uc *MessageUseCase) broadcastNewMessage(message *entity.ChatMessage) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":    "new_message",
		"room_id": message.RoomID,
		"message": message,
	})
	if err != nil {
		logger.Error("Failed to marshal new_message event for room %s: %v", message.RoomID, err)
		return
	}
	uc.broadcaster.BroadcastToRoom(message.RoomID, payload)
}

// DeleteMessage soft-deletes one of the sender's own messages. Deleting an
// already-deleted message is a no-op success.
func (uc *MessageUseCase) DeleteMessage(ctx context.Context, messageID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != userID {
		return errors.Forbidden("Only the sender can delete a message", nil)
	}
	if message.IsDeleted {
		return nil
	}

	return uc.messageRepo.SoftDelete(ctx, messageID, time.Now())
}

// MarkRead transitions every unread message from the other party to read.
// Repeated calls converge on the same state without error.
func (uc *MessageUseCase) MarkRead(ctx context.Context, roomID, readerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if !room.IsMember(readerID) {
		return 0, errors.Forbidden("User is not a member of this chat room", nil)
	}

	updated, err := uc.messageRepo.MarkRoomRead(ctx, roomID, readerID, time.Now())
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":      "messages_read",
		"room_id":   roomID,
		"reader_id": readerID,
	})
	if err == nil {
		uc.broadcaster.BroadcastToRoomExcept(roomID, readerID, payload)
	}

	return updated, nil
}

// GetHistory returns the room's non-deleted messages in persistence order.
func (uc *MessageUseCase) GetHistory(ctx context.Context, roomID, requesterID string, params utils.PaginationParams) ([]*entity.ChatMessage, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}
	if !room.IsMember(requesterID) {
		return nil, 0, errors.Forbidden("User is not a member of this chat room", nil)
	}

	return uc.messageRepo.ListByRoom(ctx, roomID, params.Limit, params.Offset, params.Before)
}

// HandleTyping broadcasts an ephemeral typing indicator. Nothing is
// persisted; failures are silently dropped.
func (uc *MessageUseCase) HandleTyping(ctx context.Context, roomID, userID string, typing bool) {
	if allowed, _ := uc.rateLimiter.Allow(userID, "typing"); !allowed {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil || !room.IsMember(userID) {
		return
	}

	eventType := "user_typing"
	if !typing {
		eventType = "user_stopped_typing"
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":       eventType,
		"room_id":    roomID,
		"user_id":    userID,
		"expires_at": time.Now().Add(5 * time.Second).Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	uc.broadcaster.BroadcastToRoomExcept(roomID, userID, payload)
}
