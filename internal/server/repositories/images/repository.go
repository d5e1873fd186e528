package images

import (
	"context"

	"github.com/telegraph-app/telegraph/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, image *models.Image) error
	GetByID(ctx context.Context, id string) (*models.Image, error)
	GetTerminal(ctx context.Context, id string) (*models.Image, error)
	Advance(ctx context.Context, id, caller string, payload []byte, nextUser string, expectedHops int) error
	ListAwaiting(ctx context.Context, userName string) ([]*models.ImageSummary, error)
	SummariesForTerminal(ctx context.Context, ids []string) ([]*models.ImageSummary, error)
	SetStorageKey(ctx context.Context, id, key string) error
}
