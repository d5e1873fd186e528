// Package images provides the PostgreSQL-backed repository for relayed
// images and their hop-count life-cycle.
package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/telegraph-app/telegraph/internal/common"
	"github.com/telegraph-app/telegraph/internal/dbx"
	"github.com/telegraph-app/telegraph/internal/server/models"
)

// PostgresRepository implements image storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new image row. The ID is minted by the caller.
func (r *PostgresRepository) Create(ctx context.Context, image *models.Image) error {
	query := `
		INSERT INTO images (id, owner, payload, hops_left, edit_time, next_user, previous_user)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		image.ID, image.Owner, image.Payload, image.HopsLeft, image.EditTime,
		image.NextUser, image.PreviousUser)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the full image row, or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := `
		SELECT id, owner, payload, hops_left, edit_time, next_user, previous_user, storage_key, created_at
		FROM images
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetTerminal returns the image only if it has run out of hops.
// A live (still editable) image yields common.ErrorNotFound.
func (r *PostgresRepository) GetTerminal(ctx context.Context, id string) (*models.Image, error) {
	query := `
		SELECT id, owner, payload, hops_left, edit_time, next_user, previous_user, storage_key, created_at
		FROM images
		WHERE id = $1 AND hops_left = 0
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Image, error) {
	image := &models.Image{}
	err := row.Scan(&image.ID, &image.Owner, &image.Payload, &image.HopsLeft,
		&image.EditTime, &image.NextUser, &image.PreviousUser, &image.StorageKey,
		&image.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return image, nil
}

// Advance performs the hand-off as a single conditional update: the row must
// still name caller as next_user and carry exactly expectedHops hops. When the
// guard no longer matches (a concurrent advance won, or the image vanished),
// no row is updated and common.ErrVersionConflict is returned.
func (r *PostgresRepository) Advance(ctx context.Context, id, caller string, payload []byte, nextUser string, expectedHops int) error {
	query := `
		UPDATE images
		SET payload = $3, hops_left = hops_left - 1, previous_user = $2, next_user = $4
		WHERE id = $1 AND next_user = $2 AND hops_left = $5 AND hops_left > 0
	`
	res, err := r.db.ExecContext(ctx, query, id, caller, payload, nextUser, expectedHops)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// ListAwaiting returns summaries of live images whose next edit is expected
// from userName, oldest first.
func (r *PostgresRepository) ListAwaiting(ctx context.Context, userName string) ([]*models.ImageSummary, error) {
	query := `
		SELECT id, owner, hops_left, edit_time, created_at FROM images
		WHERE next_user = $1 AND hops_left > 0
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	return scanSummaries(rows, models.StatusAwaitingEdit)
}

// SummariesForTerminal returns summaries for the terminal images among ids,
// oldest first. Non-terminal or unknown ids are silently skipped.
func (r *PostgresRepository) SummariesForTerminal(ctx context.Context, ids []string) ([]*models.ImageSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, owner, hops_left, edit_time, created_at FROM images
		WHERE hops_left = 0 AND id = ANY($1)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	return scanSummaries(rows, models.StatusCompleted)
}

func scanSummaries(rows *sql.Rows, status string) ([]*models.ImageSummary, error) {
	defer rows.Close()

	var result []*models.ImageSummary
	for rows.Next() {
		item := models.ImageSummary{Status: status}
		if err := rows.Scan(&item.ID, &item.Owner, &item.HopsLeft, &item.EditTime, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetStorageKey records the object-storage key of an archived terminal payload.
func (r *PostgresRepository) SetStorageKey(ctx context.Context, id, key string) error {
	query := `
		UPDATE images SET storage_key = $2
		WHERE id = $1 AND hops_left = 0
	`
	res, err := r.db.ExecContext(ctx, query, id, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrorNotFound
	}
	return nil
}
