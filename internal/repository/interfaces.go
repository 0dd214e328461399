package repository

import (
	"context"
	"time"

	"github.com/isdelr/accounts-api/internal/models"
)

// UserRepository persists accounts. Lookups return common.ErrNotFound when no
// row matches and inserts return common.ErrConflict on a duplicate email.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	MarkVerified(ctx context.Context, id, token string, at time.Time) error
}

// ImageRepository persists profile picture metadata, at most one per user.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByUserID(ctx context.Context, userID string) (*models.Image, error)
	Delete(ctx context.Context, id string) error
}
