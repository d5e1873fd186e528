// Package friends provides the PostgreSQL-backed repository for the
// friends list used when picking relay recipients.
package friends

import (
	"context"
	"fmt"

	"github.com/telegraph-app/telegraph/internal/dbx"
)

// PostgresRepository implements friend-pair storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add records a friend pair. Adding the same pair twice is a no-op.
func (r *PostgresRepository) Add(ctx context.Context, userName, friend string) error {
	query := `
		INSERT INTO friends (username, friend)
		VALUES ($1, $2)
		ON CONFLICT (username, friend) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userName, friend); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns userName's friends in the order they were added.
func (r *PostgresRepository) List(ctx context.Context, userName string) ([]string, error) {
	query := `
		SELECT friend FROM friends
		WHERE username = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to select friends: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return nil, err
		}
		result = append(result, friend)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
