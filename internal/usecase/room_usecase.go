package usecase

import (
	"context"
	"time"

	"github.com/samber/lo"

	"tradepost/internal/domain/entity"
	"tradepost/internal/domain/repository"
	"tradepost/internal/infrastructure/ratelimit"
	"tradepost/pkg/errors"
	"tradepost/pkg/logger"
)

// RoomUseCase is the room directory: it resolves or creates the canonical
// room for a (listing, requester) pair and owns block/unblock.
type RoomUseCase struct {
	roomRepo    repository.ChatRoomRepository
	messageRepo repository.ChatMessageRepository
	listings    ListingService
	rateLimiter *ratelimit.RateLimiter
	opTimeout   time.Duration
}

func NewRoomUseCase(
	roomRepo repository.ChatRoomRepository,
	messageRepo repository.ChatMessageRepository,
	listings ListingService,
	rateLimiter *ratelimit.RateLimiter,
	opTimeout time.Duration,
) *RoomUseCase {
	return &RoomUseCase{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		listings:    listings,
		rateLimiter: rateLimiter,
		opTimeout:   opTimeout,
	}
}

type RoomResponse struct {
	*entity.ChatRoom
	Listing     *entity.ListingSummary `json:"listing,omitempty"`
	LastMessage *entity.ChatMessage    `json:"last_message,omitempty"`
	UnreadCount int64                  `json:"unread_count"`
}

// GetOrCreateRoom resolves the canonical room for the requester and listing.
// The seller is looked up from the listing at call time; the requester is the
// buyer. Concurrent first-contact requests race on the storage layer's
// uniqueness constraint, and the loser re-reads the winning row.
func (uc *RoomUseCase) GetOrCreateRoom(ctx context.Context, requesterID, listingID string) (*RoomResponse, error) {
	if allowed, _ := uc.rateLimiter.Allow(requesterID, "create_room"); !allowed {
		return nil, errors.TooManyRequests("Too many new chats, please wait before starting another")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	listing, err := uc.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status == entity.ListingStatusDeleted {
		return nil, errors.NotFound("Listing", nil)
	}

	if requesterID == listing.SellerID {
		return nil, errors.InvalidChat("You cannot chat about your own listing")
	}

	room, err := uc.roomRepo.GetByTriple(ctx, listingID, requesterID, listing.SellerID)
	if err == nil {
		return uc.buildResponse(ctx, room, requesterID, listing), nil
	}
	if !errors.Is(err, "NOT_FOUND") {
		return nil, err
	}

	room = &entity.ChatRoom{
		ListingID: listingID,
		BuyerID:   requesterID,
		SellerID:  listing.SellerID,
	}

	if err := uc.roomRepo.Create(ctx, room); err != nil {
		if !errors.Is(err, "CONFLICT") {
			return nil, err
		}
		// Lost the creation race; the winning row is the canonical room.
		room, err = uc.roomRepo.GetByTriple(ctx, listingID, requesterID, listing.SellerID)
		if err != nil {
			return nil, err
		}
	}

	return uc.buildResponse(ctx, room, requesterID, listing), nil
}

// GetRoom fetches one room for a member, with its listing summary.
func (uc *RoomUseCase) GetRoom(ctx context.Context, roomID, userID string) (*RoomResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	room, err := uc.AuthorizeMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}

	var listing *entity.Listing
	if l, err := uc.listings.GetByID(ctx, room.ListingID); err == nil {
		listing = l
	} else {
		logger.Warn("Listing %s not found for room %s: %v", room.ListingID, roomID, err)
	}

	return uc.buildResponse(ctx, room, userID, listing), nil
}

// AuthorizeMember loads a room and verifies membership. Joining is allowed
// even when the room is blocked; only sending is restricted.
func (uc *RoomUseCase) AuthorizeMember(ctx context.Context, roomID, userID string) (*entity.ChatRoom, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsMember(userID) {
		return nil, errors.Forbidden("User is not a member of this chat room", nil)
	}
	return room, nil
}

// ListRooms returns the user's rooms, most recently active first, each with
// its last message and the user's unread count.
func (uc *RoomUseCase) ListRooms(ctx context.Context, userID string, limit, offset int) ([]*RoomResponse, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	rooms, total, err := uc.roomRepo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		var listing *entity.Listing
		if l, err := uc.listings.GetByID(ctx, room.ListingID); err == nil {
			listing = l
		}
		responses = append(responses, uc.buildResponse(ctx, room, userID, listing))
	}

	return responses, total, nil
}

func (uc *RoomUseCase) BlockRoom(ctx context.Context, roomID, actorID string) error {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	room, err := uc.AuthorizeMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if room.IsBlocked {
		return nil
	}

	return uc.roomRepo.SetBlocked(ctx, roomID, true, actorID)
}

// UnblockRoom lifts a block. Blocking is unidirectional: only the member who
// blocked the room may unblock it.
func (uc *RoomUseCase) UnblockRoom(ctx context.Context, roomID, actorID string) error {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	room, err := uc.AuthorizeMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if !room.IsBlocked {
		return nil
	}
	if room.BlockedBy != actorID {
		return errors.Forbidden("Only the member who blocked this chat can unblock it", nil)
	}

	return uc.roomRepo.SetBlocked(ctx, roomID, false, "")
}

// UnreadCountTotal sums the user's unread messages across all their rooms.
func (uc *RoomUseCase) UnreadCountTotal(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opTimeout)
	defer cancel()

	rooms, _, err := uc.roomRepo.ListByUserID(ctx, userID, 0, 0)
	if err != nil {
		return 0, err
	}

	counts := make([]int64, 0, len(rooms))
	for _, room := range rooms {
		count, err := uc.messageRepo.CountUnread(ctx, room.ID, userID)
		if err != nil {
			return 0, err
		}
		counts = append(counts, count)
	}

	return lo.Sum(counts), nil
}

func (uc *RoomUseCase) buildResponse(ctx context.Context, room *entity.ChatRoom, userID string, listing *entity.Listing) *RoomResponse {
	resp := &RoomResponse{ChatRoom: room}
	if listing != nil {
		resp.Listing = listing.Summary()
	}

	if last, err := uc.messageRepo.LastMessage(ctx, room.ID); err == nil {
		resp.LastMessage = last
	}
	if unread, err := uc.messageRepo.CountUnread(ctx, room.ID, userID); err == nil {
		resp.UnreadCount = unread
	} else {
		logger.Warn("Unread count failed for room %s: %v", room.ID, err)
	}

	return resp
}
