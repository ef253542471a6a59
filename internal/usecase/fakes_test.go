package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradepost/internal/domain/entity"
	"tradepost/pkg/errors"
)

// In-memory collaborators for the usecase tests. The room fake enforces the
// same triple-uniqueness contract as the Firestore implementation so the
// creation race can be exercised without a live store.

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*entity.ChatRoom
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]*entity.ChatRoom)}
}

func tripleKey(listingID, buyerID, sellerID string) string {
	return listingID + "_" + buyerID + "_" + sellerID
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *entity.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := tripleKey(room.ListingID, room.BuyerID, room.SellerID)
	if _, exists := r.rooms[id]; exists {
		return errors.Conflict("Chat room already exists", nil)
	}

	room.ID = id
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	copied := *room
	r.rooms[id] = &copied
	return nil
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, errors.NotFound("Chat room", nil)
	}
	copied := *room
	return &copied, nil
}

func (r *fakeRoomRepo) GetByTriple(ctx context.Context, listingID, buyerID, sellerID string) (*entity.ChatRoom, error) {
	return r.GetByID(ctx, tripleKey(listingID, buyerID, sellerID))
}

func (r *fakeRoomRepo) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.ChatRoom, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.ChatRoom
	for _, room := range r.rooms {
		if room.BuyerID == userID || room.SellerID == userID {
			copied := *room
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, total, nil
}

func (r *fakeRoomRepo) Touch(ctx context.Context, roomID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return errors.NotFound("Chat room", nil)
	}
	room.UpdatedAt = at
	return nil
}

func (r *fakeRoomRepo) SetBlocked(ctx context.Context, roomID string, blocked bool, blockedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return errors.NotFound("Chat room", nil)
	}
	room.IsBlocked = blocked
	room.BlockedBy = blockedBy
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*entity.ChatMessage
	seq      int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *entity.ChatMessage) (*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	copied := *message
	copied.ID = fmt.Sprintf("msg-%04d", r.seq)
	// Monotonic insertion timestamps stand in for the store's server clock.
	copied.CreatedAt = time.Unix(0, int64(r.seq)*int64(time.Millisecond))
	r.messages = append(r.messages, &copied)

	result := copied
	return &result, nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, errors.NotFound("Message", nil)
}

func (r *fakeMessageRepo) ListByRoom(ctx context.Context, roomID string, limit, offset int, before string) ([]*entity.ChatMessage, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cutoff time.Time
	if before != "" {
		for _, m := range r.messages {
			if m.ID == before {
				cutoff = m.CreatedAt
			}
		}
	}

	var result []*entity.ChatMessage
	for _, m := range r.messages {
		if m.RoomID != roomID || m.IsDeleted {
			continue
		}
		if before != "" && !m.CreatedAt.Before(cutoff) {
			continue
		}
		copied := *m
		result = append(result, &copied)
	}

	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, total, nil
}

func (r *fakeMessageRepo) MarkRoomRead(ctx context.Context, roomID, readerID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, m := range r.messages {
		if m.RoomID == roomID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			readAt := at
			m.ReadAt = &readAt
			updated++
		}
	}
	return updated, nil
}

func (r *fakeMessageRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages {
		if m.ID == id {
			m.IsDeleted = true
			deletedAt := at
			m.DeletedAt = &deletedAt
			return nil
		}
	}
	return errors.NotFound("Message", nil)
}

func (r *fakeMessageRepo) CountUnread(ctx context.Context, roomID, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, m := range r.messages {
		if m.RoomID == roomID && m.SenderID != userID && !m.IsRead && !m.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) LastMessage(ctx context.Context, roomID string) (*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].RoomID == roomID && !r.messages[i].IsDeleted {
			copied := *r.messages[i]
			return &copied, nil
		}
	}
	return nil, errors.NotFound("Message", nil)
}

type fakeUserRepo struct {
	mu           sync.Mutex
	lastActivity map[string]time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{lastActivity: make(map[string]time.Time)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return &entity.User{ID: id}, nil
}

func (r *fakeUserRepo) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity[id] = at
	return nil
}

type fakeListingService struct {
	listings map[string]*entity.Listing
}

func newFakeListingService(listings ...*entity.Listing) *fakeListingService {
	s := &fakeListingService{listings: make(map[string]*entity.Listing)}
	for _, l := range listings {
		s.listings[l.ID] = l
	}
	return s
}

func (s *fakeListingService) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	listing, ok := s.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	return listing, nil
}

type broadcastEvent struct {
	roomID        string
	excludeUserID string
	payload       []byte
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *fakeBroadcaster) BroadcastToRoom(roomID string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{roomID: roomID, payload: payload})
}

func (b *fakeBroadcaster) BroadcastToRoomExcept(roomID, excludeUserID string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{roomID: roomID, excludeUserID: excludeUserID, payload: payload})
}

func (b *fakeBroadcaster) eventsForRoom(roomID string) []broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []broadcastEvent
	for _, e := range b.events {
		if e.roomID == roomID {
			result = append(result, e)
		}
	}
	return result
}

type fakeNotificationService struct {
	mu            sync.Mutex
	notifications []*entity.Notification
	failures      int
}

func (s *fakeNotificationService) Create(ctx context.Context, notification *entity.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return errors.Transient("notification store unavailable", nil)
	}
	s.notifications = append(s.notifications, notification)
	return nil
}

func (s *fakeNotificationService) created() []*entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.Notification(nil), s.notifications...)
}

type sentEmail struct {
	recipientID string
	roomID      string
	preview     string
}

type fakeMailer struct {
	mu     sync.Mutex
	emails []sentEmail
}

func (m *fakeMailer) SendNewMessageEmail(ctx context.Context, recipientID, roomID, preview string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, sentEmail{recipientID: recipientID, roomID: roomID, preview: preview})
	return nil
}

func (m *fakeMailer) sent() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.emails...)
}
