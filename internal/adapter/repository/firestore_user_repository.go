package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"tradepost/internal/domain/entity"
	"tradepost/internal/domain/repository"
)

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.client.Collection(userCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("User", err)
	}

	var user entity.User
	if err := doc.DataTo(&user); err != nil {
		return nil, mapFirestoreError("User", err)
	}
	user.ID = doc.Ref.ID

	return &user, nil
}

func (r *firestoreUserRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.client.Collection(userCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "lastActivityAt", Value: at},
	})
	if err != nil {
		return mapFirestoreError("User", err)
	}
	return nil
}
