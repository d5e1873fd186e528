package history

import "context"

type Repository interface {
	RegisterTouch(ctx context.Context, imageID, userName string) error
	Acknowledge(ctx context.Context, imageID, userName string) error
	PendingForUser(ctx context.Context, userName string) ([]string, error)
}
