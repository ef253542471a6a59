package repository

import (
	"context"
	"time"

	"tradepost/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
}
