package entity

import "time"

const NotificationTypeNewMessage = "new_message"

// Notification is owned by the external notifications service; the dispatcher
// only creates records there as a side effect of a send.
type Notification struct {
	ID        string    `json:"id" firestore:"id"`
	UserID    string    `json:"user_id" firestore:"userId"`
	Type      string    `json:"type" firestore:"type"`
	Title     string    `json:"title" firestore:"title"`
	Body      string    `json:"body" firestore:"body"`
	RoomID    string    `json:"room_id" firestore:"roomId"`
	MessageID string    `json:"message_id" firestore:"messageId"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}
