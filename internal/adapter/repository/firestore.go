package repository

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tradepost/pkg/errors"
)

const (
	roomCollection    = "chat_rooms"
	messageCollection = "chat_messages"
	listingCollection = "listings"
	userCollection    = "users"

	notificationCollection = "notifications"
)

// mapFirestoreError translates grpc status codes into the app taxonomy.
// Deadline and availability failures surface as retryable transient errors.
func mapFirestoreError(resource string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound(resource, err)
	case codes.AlreadyExists:
		return errors.Conflict(resource+" already exists", err)
	case codes.DeadlineExceeded, codes.Unavailable:
		return errors.Transient("Storage operation timed out, please retry", err)
	default:
		return errors.Internal("Storage operation failed", err)
	}
}
