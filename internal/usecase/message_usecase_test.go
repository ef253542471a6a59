package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/domain/entity"
	"tradepost/internal/infrastructure/moderation"
	"tradepost/internal/infrastructure/ratelimit"
	"tradepost/pkg/errors"
	"tradepost/pkg/utils"
)

type messageTestEnv struct {
	uc          *MessageUseCase
	rooms       *RoomUseCase
	roomRepo    *fakeRoomRepo
	messageRepo *fakeMessageRepo
	broadcaster *fakeBroadcaster
	notifs      *fakeNotificationService
	mailer      *fakeMailer
	dispatcher  *NotificationDispatcher
}

func newMessageTestEnv(t *testing.T, listings ...*entity.Listing) *messageTestEnv {
	t.Helper()

	roomRepo := newFakeRoomRepo()
	messageRepo := newFakeMessageRepo()
	broadcaster := &fakeBroadcaster{}
	notifs := &fakeNotificationService{}
	mailer := &fakeMailer{}

	dispatcher := NewNotificationDispatcher(notifs, mailer, 16)
	dispatcher.Start(context.Background())

	filter, err := moderation.NewFilter([]string{"scammer"})
	require.NoError(t, err)

	limiter := ratelimit.NewRateLimiter()
	uc := NewMessageUseCase(
		roomRepo,
		messageRepo,
		newFakeUserRepo(),
		filter,
		broadcaster,
		dispatcher,
		limiter,
		testTimeout,
	)
	rooms := NewRoomUseCase(roomRepo, messageRepo, newFakeListingService(listings...), limiter, testTimeout)

	return &messageTestEnv{
		uc:          uc,
		rooms:       rooms,
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		broadcaster: broadcaster,
		notifs:      notifs,
		mailer:      mailer,
		dispatcher:  dispatcher,
	}
}

func (env *messageTestEnv) createRoom(t *testing.T, buyerID, listingID string) *entity.ChatRoom {
	t.Helper()
	room, err := env.rooms.GetOrCreateRoom(context.Background(), buyerID, listingID)
	require.NoError(t, err)
	return room.ChatRoom
}

func TestSendMessagePersistsAndBroadcasts(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	message, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "Is this still available?")
	require.NoError(t, err)

	assert.NotEmpty(t, message.ID)
	assert.False(t, message.CreatedAt.IsZero())
	assert.Equal(t, "Is this still available?", message.Content)

	events := env.broadcaster.eventsForRoom(room.ID)
	require.Len(t, events, 1)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(events[0].payload, &event))
	assert.Equal(t, "new_message", event["type"])
	assert.Equal(t, room.ID, event["room_id"])
}

func TestSendMessageDispatchesNotification(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "Is this still available?")
	require.NoError(t, err)

	// Close drains the queue so the dispatch is visible.
	env.dispatcher.Close()

	created := env.notifs.created()
	require.Len(t, created, 1)
	assert.Equal(t, "seller-1", created[0].UserID)
	assert.Equal(t, entity.NotificationTypeNewMessage, created[0].Type)

	emails := env.mailer.sent()
	require.Len(t, emails, 1)
	assert.Equal(t, "seller-1", emails[0].recipientID)
	assert.Equal(t, room.ID, emails[0].roomID)
}

func TestSendMessageRetriesNotificationFailures(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	env.notifs.failures = 2

	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "hello")
	require.NoError(t, err)

	env.dispatcher.Close()

	assert.Len(t, env.notifs.created(), 1)
}

func TestSendMessageSanitizesContent(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	message, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", `  <script>alert("hi")</script>  `)
	require.NoError(t, err)

	assert.Equal(t, "&lt;script&gt;alert(&quot;hi&quot;)&lt;/script&gt;", message.Content)
}

func TestSendMessageValidation(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	cases := []struct {
		name    string
		content string
		code    string
	}{
		{"blank", "   \t\n ", "BAD_REQUEST"},
		{"too long", strings.Repeat("a", 1001), "BAD_REQUEST"},
		{"image attachment", "check this photo.jpg", "FILE_NOT_ALLOWED"},
		{"data uri", "data:image/png;base64,iVBORw0KG", "FILE_NOT_ALLOWED"},
		{"image host link", "https://imgur.com/abc123", "FILE_NOT_ALLOWED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", tc.content)
			assert.True(t, errors.Is(err, tc.code), "expected %s, got %v", tc.code, err)
		})
	}

	// Exactly at the limit passes.
	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", strings.Repeat("a", 1000))
	assert.NoError(t, err)
}

func TestSendMessageRejectsProfanity(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "this is a scammer site")
	assert.True(t, errors.Is(err, "INAPPROPRIATE_LANGUAGE"))
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	_, err := env.uc.SendMessage(context.Background(), room.ID, "stranger", "hello")
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSendMessageRejectsBlockedRoom(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	require.NoError(t, env.rooms.BlockRoom(context.Background(), room.ID, "seller-1"))

	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "hello")
	assert.True(t, errors.Is(err, "ROOM_BLOCKED"))

	// The blocker cannot send either.
	_, err = env.uc.SendMessage(context.Background(), room.ID, "seller-1", "hello")
	assert.True(t, errors.Is(err, "ROOM_BLOCKED"))
}

func TestSendMessageRateLimited(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	var limited bool
	for i := 0; i < 25; i++ {
		_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "hello")
		if errors.Is(err, "TOO_MANY_REQUESTS") {
			limited = true
			break
		}
		require.NoError(t, err)
	}
	assert.True(t, limited)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "hello")
	require.NoError(t, err)
	_, err = env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "anyone there?")
	require.NoError(t, err)

	updated, err := env.uc.MarkRead(context.Background(), room.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	updated, err = env.uc.MarkRead(context.Background(), room.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	count, err := env.messageRepo.CountUnread(context.Background(), room.ID, "seller-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkReadSkipsOwnMessages(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "hello")
	require.NoError(t, err)

	updated, err := env.uc.MarkRead(context.Background(), room.ID, "buyer-1")
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	message, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "typo")
	require.NoError(t, err)

	err = env.uc.DeleteMessage(context.Background(), message.ID, "seller-1")
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	require.NoError(t, env.uc.DeleteMessage(context.Background(), message.ID, "buyer-1"))
	// Deleting again is a no-op.
	require.NoError(t, env.uc.DeleteMessage(context.Background(), message.ID, "buyer-1"))

	messages, _, err := env.uc.GetHistory(context.Background(), room.ID, "buyer-1", utils.PaginationParams{Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestGetHistoryKeepsInsertionOrder(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", content)
		require.NoError(t, err)
	}

	messages, total, err := env.uc.GetHistory(context.Background(), room.ID, "seller-1", utils.PaginationParams{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, messages, 3)
	for i, content := range contents {
		assert.Equal(t, content, messages[i].Content)
	}
}

func TestGetHistoryRejectsNonMember(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	_, _, err := env.uc.GetHistory(context.Background(), room.ID, "stranger", utils.PaginationParams{Limit: 50})
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestHandleTypingBroadcastsToOthersOnly(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	env.uc.HandleTyping(context.Background(), room.ID, "buyer-1", true)

	events := env.broadcaster.eventsForRoom(room.ID)
	require.Len(t, events, 1)
	assert.Equal(t, "buyer-1", events[0].excludeUserID)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(events[0].payload, &event))
	assert.Equal(t, "user_typing", event["type"])
	assert.NotEmpty(t, event["expires_at"])
}

func TestHandleTypingIgnoresNonMember(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	env.uc.HandleTyping(context.Background(), room.ID, "stranger", true)

	assert.Empty(t, env.broadcaster.eventsForRoom(room.ID))
}

// Full buyer/seller exchange: first contact, unread counts, read receipts.
func TestBuyerSellerConversationFlow(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))

	room, err := env.rooms.GetOrCreateRoom(context.Background(), "buyer-1", "listing-1")
	require.NoError(t, err)

	_, err = env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "Is this still available?")
	require.NoError(t, err)

	sellerView, err := env.rooms.GetRoom(context.Background(), room.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sellerView.UnreadCount)
	require.NotNil(t, sellerView.LastMessage)
	assert.Equal(t, "Is this still available?", sellerView.LastMessage.Content)

	_, err = env.uc.SendMessage(context.Background(), room.ID, "seller-1", "Yes, it is!")
	require.NoError(t, err)

	updated, err := env.uc.MarkRead(context.Background(), room.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	buyerView, err := env.rooms.GetRoom(context.Background(), room.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), buyerView.UnreadCount)
	assert.Equal(t, "Yes, it is!", buyerView.LastMessage.Content)
}

// Concurrent senders must fan out in persistence order: the broadcast sequence
// for a room always matches the order the store assigned.
func TestConcurrentSendsBroadcastInPersistenceOrder(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sender := "buyer-1"
		if i%2 == 1 {
			sender = "seller-1"
		}
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			_, err := env.uc.SendMessage(context.Background(), room.ID, sender, "hello")
			require.NoError(t, err)
		}(sender)
	}
	wg.Wait()

	env.messageRepo.mu.Lock()
	persisted := make([]string, 0, len(env.messageRepo.messages))
	for _, m := range env.messageRepo.messages {
		persisted = append(persisted, m.ID)
	}
	env.messageRepo.mu.Unlock()
	require.Len(t, persisted, 8)

	var broadcasted []string
	for _, e := range env.broadcaster.eventsForRoom(room.ID) {
		var event struct {
			Type    string `json:"type"`
			Message struct {
				ID string `json:"id"`
			} `json:"message"`
		}
		require.NoError(t, json.Unmarshal(e.payload, &event))
		if event.Type == "new_message" {
			broadcasted = append(broadcasted, event.Message.ID)
		}
	}

	assert.Equal(t, persisted, broadcasted)
}

func TestDeletedMessagesDropOutOfUnreadCount(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	kept, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "still want it?")
	require.NoError(t, err)
	retracted, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", "nevermind")
	require.NoError(t, err)

	sellerView, err := env.rooms.GetRoom(context.Background(), room.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sellerView.UnreadCount)

	require.NoError(t, env.uc.DeleteMessage(context.Background(), retracted.ID, "buyer-1"))

	sellerView, err = env.rooms.GetRoom(context.Background(), room.ID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sellerView.UnreadCount)
	assert.Equal(t, kept.ID, sellerView.LastMessage.ID)
}

func TestNotificationPreviewKeepsRunesIntact(t *testing.T) {
	env := newMessageTestEnv(t, activeListing("listing-1", "seller-1"))
	room := env.createRoom(t, "buyer-1", "listing-1")

	content := strings.Repeat("ä", 120)
	_, err := env.uc.SendMessage(context.Background(), room.ID, "buyer-1", content)
	require.NoError(t, err)

	env.dispatcher.Close()

	emails := env.mailer.sent()
	require.Len(t, emails, 1)
	assert.True(t, utf8.ValidString(emails[0].preview))
	assert.Equal(t, strings.Repeat("ä", 80), emails[0].preview)
}
