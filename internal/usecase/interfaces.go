package usecase

import (
	"context"

	"tradepost/internal/domain/entity"
)

// External collaborators. The chat core depends on these interfaces only;
// credential issuance, listing CRUD, notification storage and email rendering
// all live elsewhere.

type AuthVerifier interface {
	// VerifyToken resolves a bearer credential to a user ID. It must reject
	// missing, invalid, expired and disabled-account credentials.
	VerifyToken(ctx context.Context, token string) (string, error)
}

type ListingService interface {
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
}

type NotificationService interface {
	Create(ctx context.Context, notification *entity.Notification) error
}

type Mailer interface {
	SendNewMessageEmail(ctx context.Context, recipientID, roomID, preview string) error
}

// Broadcaster delivers an event payload to every connection currently
// subscribed to a room. Delivery is best-effort and at-most-once.
type Broadcaster interface {
	BroadcastToRoom(roomID string, payload []byte)
	BroadcastToRoomExcept(roomID, excludeUserID string, payload []byte)
}
