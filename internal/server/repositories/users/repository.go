package users

import (
	"context"

	"github.com/telegraph-app/telegraph/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, userName string) (bool, error)
}
