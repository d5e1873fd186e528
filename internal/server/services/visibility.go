// VisibilityService tracks, per image and contributor, whether the finished
// result has been seen. It is the only writer of contribution records; the
// relay service calls into it on every create and hand-off.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/telegraph-app/telegraph/internal/common"
	"github.com/telegraph-app/telegraph/internal/dbx"
	"github.com/telegraph-app/telegraph/internal/server/repositories/repomanager"
)

type VisibilityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewVisibilityService constructs a VisibilityService over the shared handle.
func NewVisibilityService(db *sql.DB, m repomanager.RepositoryManager) *VisibilityService {
	return &VisibilityService{db: db, repomanager: m}
}

// RegisterTouch records that userName has held imageID. It takes an explicit
// DBTX so the relay service can run it inside the same transaction as the
// hand-off itself. Idempotent: repeat touches never add a second record.
func (s *VisibilityService) RegisterTouch(ctx context.Context, tx dbx.DBTX, imageID, userName string) error {
	if err := s.repomanager.History(tx).RegisterTouch(ctx, imageID, userName); err != nil {
		return fmt.Errorf("error registering touch: %v", err)
	}
	return nil
}

// Acknowledge marks the finished image as seen by userName. Acknowledging an
// untracked pair is deliberately a silent no-op; a malformed image ID is
// rejected before the store is touched.
func (s *VisibilityService) Acknowledge(ctx context.Context, imageID, userName string) error {
	if userName == "" {
		return common.ErrorInvalidInput
	}
	if _, err := uuid.Parse(imageID); err != nil {
		return common.ErrorInvalidInput
	}
	if err := s.repomanager.History(s.db).Acknowledge(ctx, imageID, userName); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// PendingForUser returns the ids of images userName contributed to and has
// not yet acknowledged, terminal or not; the relay narrows the set down to
// terminal images when building the actionable list.
func (s *VisibilityService) PendingForUser(ctx context.Context, userName string) ([]string, error) {
	ids, err := s.repomanager.History(s.db).PendingForUser(ctx, userName)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return ids, nil
}
