// RelayService owns the image hand-off life-cycle: creation, per-hop
// mutation, terminal transition, and the "what needs my attention" query.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/telegraph-app/telegraph/internal/common"
	"github.com/telegraph-app/telegraph/internal/dbx"
	"github.com/telegraph-app/telegraph/internal/logging"
	"github.com/telegraph-app/telegraph/internal/server/models"
	"github.com/telegraph-app/telegraph/internal/server/repositories/repomanager"
)

// Archiver copies a terminal payload to object storage. Optional; the relay
// treats archival as a best-effort side effect of completion.
type Archiver interface {
	Enabled() bool
	Archive(ctx context.Context, image *models.Image) error
}

type RelayService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	visibility  *VisibilityService
	archiver    Archiver
	logger      logging.Logger
}

// NewRelayService constructs a RelayService. archiver may be nil.
func NewRelayService(db *sql.DB, m repomanager.RepositoryManager, v *VisibilityService, archiver Archiver, l logging.Logger) *RelayService {
	return &RelayService{
		db:          db,
		repomanager: m,
		visibility:  v,
		archiver:    archiver,
		logger:      l.With("module", "relay"),
	}
}

// CreateImage starts a new relay chain: the creator supplies the initial
// payload, the declared chain length (hops), an informational per-hop edit
// time, and the first recipient. The creator's contribution record is written
// in the same transaction as the image row.
func (s *RelayService) CreateImage(ctx context.Context, creator string, payload []byte, editTime, hops int, nextUser string) (string, error) {
	if creator == "" || len(payload) == 0 || hops <= 0 || nextUser == "" {
		return "", common.ErrorInvalidInput
	}

	if err := s.checkRecipient(ctx, nextUser); err != nil {
		return "", err
	}

	image := &models.Image{
		ID:           uuid.NewString(),
		Owner:        creator,
		Payload:      payload,
		HopsLeft:     hops,
		EditTime:     editTime,
		NextUser:     nextUser,
		PreviousUser: creator,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Images(tx).Create(ctx, image); err != nil {
			return err
		}
		return s.visibility.RegisterTouch(ctx, tx, image.ID, creator)
	})
	if err != nil {
		return "", fmt.Errorf("error creating image: %v", err)
	}

	s.logger.Info(ctx, "image created", "image_id", image.ID, "hops", hops)
	return image.ID, nil
}

// AdvanceImage performs one hand-off. Only the recorded next user may call
// it, and only while hops remain. The hop decrement, payload replacement and
// holder change are one conditional update, run in the same transaction as
// the caller's first-touch registration; losing the conditional write to a
// concurrent advance yields ErrVersionConflict and leaves everything
// untouched. Returns the remaining hop count.
func (s *RelayService) AdvanceImage(ctx context.Context, caller, imageID string, payload []byte, nextUser string) (int, error) {
	if caller == "" || len(payload) == 0 || nextUser == "" {
		return 0, common.ErrorInvalidInput
	}
	if _, err := uuid.Parse(imageID); err != nil {
		return 0, common.ErrorInvalidInput
	}

	imageRepo := s.repomanager.Images(s.db)

	image, err := imageRepo.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.ErrorNotFound
		}
		return 0, common.ErrorInternal
	}
	if image.Terminal() || image.NextUser != caller {
		return 0, common.ErrorNotAuthorized
	}

	if err := s.checkRecipient(ctx, nextUser); err != nil {
		return 0, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Images(tx).Advance(ctx, imageID, caller, payload, nextUser, image.HopsLeft); err != nil {
			return err
		}
		return s.visibility.RegisterTouch(ctx, tx, imageID, caller)
	})
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return 0, common.ErrVersionConflict
		}
		return 0, fmt.Errorf("error advancing image: %v", err)
	}

	newHops := image.HopsLeft - 1
	if newHops == 0 {
		// The terminal transition flips visibility for every contributor at
		// once; nothing per-user happens here.
		s.logger.Info(ctx, "image completed", "image_id", imageID)
		s.archiveCompleted(ctx, image, payload)
	}
	return newHops, nil
}

// QueryActionable returns the images that need something from userName:
// live images awaiting their edit, followed by completed images they
// contributed to and have not acknowledged. Each class is ordered oldest
// first.
func (s *RelayService) QueryActionable(ctx context.Context, userName string) ([]*models.ImageSummary, error) {
	if userName == "" {
		return nil, common.ErrorInvalidInput
	}

	imageRepo := s.repomanager.Images(s.db)

	awaiting, err := imageRepo.ListAwaiting(ctx, userName)
	if err != nil {
		return nil, common.ErrorInternal
	}

	pending, err := s.visibility.PendingForUser(ctx, userName)
	if err != nil {
		return nil, common.ErrorInternal
	}

	completed, err := imageRepo.SummariesForTerminal(ctx, pending)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return append(awaiting, completed...), nil
}

// FetchPayload returns the payload of a terminal image. Knowing the UUID is
// the capability: the caller does not have to appear in the image's
// contribution records.
func (s *RelayService) FetchPayload(ctx context.Context, userName, imageID string) ([]byte, error) {
	if userName == "" {
		return nil, common.ErrorInvalidInput
	}
	if _, err := uuid.Parse(imageID); err != nil {
		return nil, common.ErrorInvalidInput
	}

	image, err := s.repomanager.Images(s.db).GetTerminal(ctx, imageID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return image.Payload, nil
}

func (s *RelayService) checkRecipient(ctx context.Context, nextUser string) error {
	exists, err := s.repomanager.Users(s.db).Exists(ctx, nextUser)
	if err != nil {
		return common.ErrorInternal
	}
	if !exists {
		return common.ErrorInvalidRecipient
	}
	return nil
}

// archiveCompleted copies the final payload to object storage. Failures are
// logged, not returned: the hand-off already committed.
func (s *RelayService) archiveCompleted(ctx context.Context, image *models.Image, finalPayload []byte) {
	if s.archiver == nil || !s.archiver.Enabled() {
		return
	}
	completed := *image
	completed.Payload = finalPayload
	completed.HopsLeft = 0
	if err := s.archiver.Archive(ctx, &completed); err != nil {
		s.logger.Error(ctx, "archive failed", "image_id", image.ID, "error", err.Error())
	}
}
