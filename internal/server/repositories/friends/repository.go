package friends

import "context"

type Repository interface {
	Add(ctx context.Context, userName, friend string) error
	List(ctx context.Context, userName string) ([]string, error)
}
