// Package channels persists channel rows.
package channels

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new channel.
func (r *PostgresRepository) Create(ctx context.Context, ch *models.Channel) error {
	query := `INSERT INTO channels (id, created_at) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, ch.ID, ch.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}
	return nil
}
