// Package history provides the PostgreSQL-backed repository for contribution
// records: which users have held an image and whether they have seen the
// finished result.
package history

import (
	"context"
	"fmt"

	"github.com/telegraph-app/telegraph/internal/dbx"
)

// PostgresRepository implements contribution-record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RegisterTouch records that userName has held imageID. The insert and the
// existence check are one statement; repeated hand-offs between the same
// pair never produce a second row.
func (r *PostgresRepository) RegisterTouch(ctx context.Context, imageID, userName string) error {
	query := `
		INSERT INTO image_history (image_id, username)
		VALUES ($1, $2)
		ON CONFLICT (image_id, username) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, imageID, userName); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Acknowledge marks the (imageID, userName) record as viewed. Acknowledging
// a pair that was never tracked is a no-op, not an error.
func (r *PostgresRepository) Acknowledge(ctx context.Context, imageID, userName string) error {
	query := `
		UPDATE image_history SET viewed = true
		WHERE image_id = $1 AND username = $2
	`
	if _, err := r.db.ExecContext(ctx, query, imageID, userName); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// PendingForUser returns the ids of images userName contributed to and has
// not yet acknowledged. The caller decides which of those are terminal.
func (r *PostgresRepository) PendingForUser(ctx context.Context, userName string) ([]string, error) {
	query := `
		SELECT image_id FROM image_history
		WHERE username = $1 AND NOT viewed
	`
	rows, err := r.db.QueryContext(ctx, query, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to select history: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
