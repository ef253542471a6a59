package entity

import "time"

// ChatMessage belongs to exactly one ChatRoom. Content is stored in sanitized
// form only. CreatedAt is assigned by the storage layer and defines the total
// order within the room.
type ChatMessage struct {
	ID         string     `json:"id" firestore:"id"`
	RoomID     string     `json:"room_id" firestore:"roomId"`
	SenderID   string     `json:"sender_id" firestore:"senderId"`
	Content    string     `json:"content" firestore:"content"`
	Attachment string     `json:"attachment,omitempty" firestore:"attachment,omitempty"`
	IsRead     bool       `json:"is_read" firestore:"isRead"`
	ReadAt     *time.Time `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	IsDeleted  bool       `json:"is_deleted" firestore:"isDeleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" firestore:"deletedAt,omitempty"`
	CreatedAt  time.Time  `json:"created_at" firestore:"createdAt,serverTimestamp"`
}
