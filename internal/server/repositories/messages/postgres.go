// Package messages persists the per-channel encrypted mailbox.
package messages

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the message. created_at is bumped to one microsecond past
// the channel's latest message when the clock has not moved on, so a
// since-cursor never skips a sibling.
func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (id, channel_id, sender, content_type, body, nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, GREATEST($7::timestamptz,
			COALESCE((SELECT MAX(created_at) + interval '1 microsecond' FROM messages WHERE channel_id = $2), $7::timestamptz)))
		RETURNING created_at`

	var contentType sql.NullString
	if m.ContentType != nil {
		contentType = sql.NullString{String: *m.ContentType, Valid: true}
	}

	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.ChannelID, m.Sender, contentType, m.Body, m.Nonce, m.CreatedAt).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	m.CreatedAt = createdAt.UTC()
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, channelID string, since *time.Time) ([]*models.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if since != nil {
		query := `SELECT id, channel_id, sender, content_type, body, nonce, created_at FROM messages
			WHERE channel_id=$1 AND created_at > $2 ORDER BY created_at ASC, seq ASC`
		rows, err = r.db.QueryContext(ctx, query, channelID, *since)
	} else {
		query := `SELECT id, channel_id, sender, content_type, body, nonce, created_at FROM messages
			WHERE channel_id=$1 ORDER BY created_at ASC, seq ASC`
		rows, err = r.db.QueryContext(ctx, query, channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		var (
			item        models.Message
			contentType sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ChannelID, &item.Sender, &contentType, &item.Body, &item.Nonce, &item.CreatedAt); err != nil {
			return nil, err
		}
		if contentType.Valid {
			ct := contentType.String
			item.ContentType = &ct
		}
		item.CreatedAt = item.CreatedAt.UTC()
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the message only if it belongs to channelID.
func (r *PostgresRepository) Delete(ctx context.Context, id, channelID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1 AND channel_id=$2`, id, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
