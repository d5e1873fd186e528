// FriendService manages the friends list users pick relay recipients from.
package services

import (
	"context"
	"database/sql"

	"github.com/telegraph-app/telegraph/internal/common"
	"github.com/telegraph-app/telegraph/internal/server/repositories/repomanager"
)

type FriendService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewFriendService constructs a FriendService over the shared handle.
func NewFriendService(db *sql.DB, m repomanager.RepositoryManager) *FriendService {
	return &FriendService{db: db, repomanager: m}
}

// Add records friend on userName's list. Adding the same friend twice is a
// no-op; an unknown friend yields ErrorInvalidRecipient.
func (s *FriendService) Add(ctx context.Context, userName, friend string) error {
	if userName == "" || friend == "" || userName == friend {
		return common.ErrorInvalidInput
	}

	exists, err := s.repomanager.Users(s.db).Exists(ctx, friend)
	if err != nil {
		return common.ErrorInternal
	}
	if !exists {
		return common.ErrorInvalidRecipient
	}

	if err := s.repomanager.Friends(s.db).Add(ctx, userName, friend); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// List returns userName's friends.
func (s *FriendService) List(ctx context.Context, userName string) ([]string, error) {
	if userName == "" {
		return nil, common.ErrorInvalidInput
	}
	list, err := s.repomanager.Friends(s.db).List(ctx, userName)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return list, nil
}
