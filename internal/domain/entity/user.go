package entity

import "time"

type User struct {
	ID             string    `json:"id" firestore:"id"`
	Username       string    `json:"username" firestore:"username"`
	Email          string    `json:"email" firestore:"email"`
	LastActivityAt time.Time `json:"last_activity_at" firestore:"lastActivityAt"`
}
