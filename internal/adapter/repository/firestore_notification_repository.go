package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"tradepost/internal/domain/entity"
	"tradepost/internal/usecase"
)

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) usecase.NotificationService {
	return &firestoreNotificationRepository{
		client: client,
	}
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	_, err := r.client.Collection(notificationCollection).Doc(notification.ID).Create(ctx, notification)
	if err != nil {
		return mapFirestoreError("Notification", err)
	}
	return nil
}
